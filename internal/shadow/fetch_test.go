package shadow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/KRD-Kai/services/internal/domain"
)

func TestFetchDecodesUpstreamAuction(t *testing.T) {
	body := `{
		"id": "5",
		"block": 1000,
		"orders": [{
			"uid": "` + domain.OrderUid{}.String() + `",
			"owner": "0x1111111111111111111111111111111111111111",
			"sellToken": "0x2222222222222222222222222222222222222222",
			"buyToken": "0x3333333333333333333333333333333333333333",
			"sellAmount": "100",
			"buyAmount": "200",
			"feeAmount": "1",
			"kind": "sell",
			"class": "market",
			"partiallyFillable": false
		}],
		"prices": {"0x2222222222222222222222222222222222222222": "1"}
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, srv.Client())
	auction, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.AuctionID(5), auction.ID)
	require.Equal(t, uint64(1000), auction.Block)
	require.Len(t, auction.Orders, 1)
	require.Equal(t, domain.OrderKindSell, auction.Orders[0].Order.Kind)
	require.Len(t, auction.Prices, 1)
}

func TestFetchSkipsMalformedOrders(t *testing.T) {
	body := `{
		"id": "1",
		"block": 1,
		"orders": [
			{"uid": "not-valid-hex", "sellAmount": "1", "buyAmount": "1"}
		],
		"prices": {}
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, srv.Client())
	auction, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Empty(t, auction.Orders)
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, srv.Client())
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
}

func TestFromWireOrderAppliesAddresses(t *testing.T) {
	var uid domain.OrderUid
	owner := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	wo := wireOrder{
		UID:        uid.String(),
		Owner:      owner.Hex(),
		SellToken:  "0x1111111111111111111111111111111111111111",
		BuyToken:   "0x2222222222222222222222222222222222222222",
		SellAmount: "10",
		BuyAmount:  "20",
		FeeAmount:  "0",
		Kind:       "buy",
	}
	o, err := fromWireOrder(wo)
	require.NoError(t, err)
	require.Equal(t, owner, o.Owner)
	require.Equal(t, domain.OrderKindBuy, o.Kind)
}
