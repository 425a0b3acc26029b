package driver

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/KRD-Kai/services/internal/domain"
)

func TestDecNil(t *testing.T) {
	require.Equal(t, "0", dec(nil))
}

func TestDecNonNil(t *testing.T) {
	require.Equal(t, "12345", dec(uint256.NewInt(12345)))
}

func TestToWireOrder(t *testing.T) {
	var uid domain.OrderUid
	uid[0] = 0xAB

	ao := domain.AuctionOrder{Order: domain.Order{
		UID:               uid,
		SellToken:         common.HexToAddress("0x1111111111111111111111111111111111111111"),
		BuyToken:          common.HexToAddress("0x2222222222222222222222222222222222222222"),
		SellAmount:        uint256.NewInt(100),
		BuyAmount:         uint256.NewInt(200),
		FeeAmount:         uint256.NewInt(1),
		ValidTo:           time.Unix(1000, 0),
		Kind:              domain.OrderKindSell,
		Owner:             common.HexToAddress("0x3333333333333333333333333333333333333333"),
		PartiallyFillable: true,
		Filled:            uint256.NewInt(10),
		Class:             domain.OrderClassMarket,
		SigningScheme:     domain.SigningSchemeEip712,
		Signature:         []byte{0x01, 0x02},
	}}

	w := toWireOrder(ao)
	require.Equal(t, uid.String(), w.UID)
	require.Equal(t, "100", w.SellAmount)
	require.Equal(t, "200", w.BuyAmount)
	require.Equal(t, "1", w.SolverFee)
	require.Equal(t, "0", w.UserFee)
	require.Equal(t, int64(1000), w.ValidTo)
	require.Equal(t, "10", w.Executed)
	require.True(t, w.PartiallyFillable)
}

func TestToWireInteractions(t *testing.T) {
	in := []domain.Interaction{{
		Target:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Value:    uint256.NewInt(5),
		CallData: []byte{0xde, 0xad},
	}}
	out := toWireInteractions(in)
	require.Len(t, out, 1)
	require.Equal(t, "5", out[0].Value)
	require.Equal(t, "0xdead", out[0].CallData)
}

func TestToWireTokens(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	a := &domain.Auction{Prices: map[common.Address]*uint256.Int{addr: uint256.NewInt(42)}}

	out := toWireTokens(a, map[common.Address]bool{addr: true})
	require.Len(t, out, 1)
	require.True(t, out[0].Trusted)
	require.NotNil(t, out[0].Price)
	require.Equal(t, "42", *out[0].Price)
}

func TestToWireTokensNilPrice(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	a := &domain.Auction{Prices: map[common.Address]*uint256.Int{addr: nil}}

	out := toWireTokens(a, nil)
	require.Len(t, out, 1)
	require.Nil(t, out[0].Price)
	require.False(t, out[0].Trusted)
}

func TestToOrderUIDs(t *testing.T) {
	var uid domain.OrderUid
	uid[0] = 0xFF
	hex := uid.String()

	out := toOrderUIDs([]string{hex, "not-hex", "0x00"})
	require.Equal(t, []domain.OrderUid{uid}, out, "malformed and wrong-length entries must be skipped")
}
