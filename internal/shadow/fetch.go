package shadow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/KRD-Kai/services/internal/domain"
)

// Fetcher pulls the externally built auction a shadow round competes
// against, never persisting or constructing one locally (spec §4.7).
type Fetcher struct {
	url    string
	client *http.Client
}

func NewFetcher(url string, client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{url: url, client: client}
}

// Fetch retrieves and decodes the upstream auction.
func (f *Fetcher) Fetch(ctx context.Context) (*domain.Auction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream auction request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch upstream auction: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream auction endpoint: status %d", resp.StatusCode)
	}

	var wa wireAuction
	if err := json.NewDecoder(resp.Body).Decode(&wa); err != nil {
		return nil, fmt.Errorf("decode upstream auction: %w", err)
	}
	return fromWire(wa)
}

func fromWire(wa wireAuction) (*domain.Auction, error) {
	id, err := wa.ID.Int64()
	if err != nil {
		return nil, fmt.Errorf("upstream auction id: %w", err)
	}

	orders := make([]domain.AuctionOrder, 0, len(wa.Orders))
	for _, wo := range wa.Orders {
		o, err := fromWireOrder(wo)
		if err != nil {
			continue // malformed upstream order: skip, don't fail the whole round
		}
		orders = append(orders, domain.AuctionOrder{Order: o})
	}

	prices := make(map[common.Address]*uint256.Int, len(wa.Prices))
	for tok, p := range wa.Prices {
		price, err := uint256.FromDecimal(p)
		if err != nil {
			continue
		}
		prices[common.HexToAddress(tok)] = price
	}

	return &domain.Auction{
		ID:     domain.AuctionID(id),
		Block:  wa.Block,
		Orders: orders,
		Prices: prices,
	}, nil
}

func fromWireOrder(wo wireOrder) (domain.Order, error) {
	sell, err := uint256.FromDecimal(wo.SellAmount)
	if err != nil {
		return domain.Order{}, err
	}
	buy, err := uint256.FromDecimal(wo.BuyAmount)
	if err != nil {
		return domain.Order{}, err
	}
	fee, err := uint256.FromDecimal(wo.FeeAmount)
	if err != nil {
		fee = uint256.NewInt(0)
	}
	uidBytes, err := hexutil.Decode(wo.UID)
	if err != nil || len(uidBytes) != len(domain.OrderUid{}) {
		return domain.Order{}, fmt.Errorf("malformed order uid %q", wo.UID)
	}
	var uid domain.OrderUid
	copy(uid[:], uidBytes)

	return domain.Order{
		UID:               uid,
		Owner:             common.HexToAddress(wo.Owner),
		SellToken:         common.HexToAddress(wo.SellToken),
		BuyToken:          common.HexToAddress(wo.BuyToken),
		SellAmount:        sell,
		BuyAmount:         buy,
		FeeAmount:         fee,
		Kind:              domain.OrderKind(wo.Kind),
		Class:             domain.OrderClass(wo.Class),
		PartiallyFillable: wo.PartiallyFillable,
		PreInteractions:   fromWireInteractions(wo.PreInteractions),
		PostInteractions:  fromWireInteractions(wo.PostInteractions),
		Filled:            uint256.NewInt(0),
	}, nil
}

func fromWireInteractions(in []wireInteraction) []domain.Interaction {
	out := make([]domain.Interaction, 0, len(in))
	for _, wi := range in {
		value, err := uint256.FromDecimal(wi.Value)
		if err != nil {
			value = uint256.NewInt(0)
		}
		callData, err := hexutil.Decode(wi.CallData)
		if err != nil {
			callData = nil
		}
		out = append(out, domain.Interaction{
			Target:   common.HexToAddress(wi.Target),
			Value:    value,
			CallData: callData,
		})
	}
	return out
}
