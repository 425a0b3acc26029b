package driver

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/KRD-Kai/services/internal/domain"
)

func toWireOrder(ao domain.AuctionOrder) wireOrder {
	o := ao.Order
	return wireOrder{
		UID:               o.UID.String(),
		SellToken:         o.SellToken.Hex(),
		BuyToken:          o.BuyToken.Hex(),
		SellAmount:        dec(o.SellAmount),
		BuyAmount:         dec(o.BuyAmount),
		SolverFee:         dec(o.FeeAmount),
		UserFee:           "0",
		ValidTo:           o.ValidTo.Unix(),
		Kind:              string(o.Kind),
		Owner:             o.Owner.Hex(),
		PartiallyFillable: o.PartiallyFillable,
		Executed:          dec(o.Filled),
		PreInteractions:   toWireInteractions(o.PreInteractions),
		PostInteractions:  toWireInteractions(o.PostInteractions),
		Class:             string(o.Class),
		AppData:           hexutil.Encode(o.AppData[:]),
		SigningScheme:     string(o.SigningScheme),
		Signature:         hexutil.Encode(o.Signature),
		FeePolicies:       toWireFeePolicies(ao.FeePolicies),
	}
}

func toWireInteractions(in []domain.Interaction) []wireInteraction {
	out := make([]wireInteraction, len(in))
	for i, it := range in {
		out[i] = wireInteraction{
			Target:   it.Target.Hex(),
			Value:    dec(it.Value),
			CallData: hexutil.Encode(it.CallData),
		}
	}
	return out
}

func toWireFeePolicies(in []domain.FeePolicy) []wireFeePolicy {
	out := make([]wireFeePolicy, len(in))
	for i, p := range in {
		out[i] = wireFeePolicy{Kind: string(p.Kind), Factor: p.Factor, MaxVolumeFactor: p.MaxVolumeFactor}
	}
	return out
}

func toWireTokens(a *domain.Auction, trusted map[common.Address]bool) []wireToken {
	out := make([]wireToken, 0, len(a.Prices))
	for addr, price := range a.Prices {
		wt := wireToken{Address: addr.Hex(), Trusted: trusted[addr]}
		if price != nil {
			p := dec(price)
			wt.Price = &p
		}
		out = append(out, wt)
	}
	return out
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func toOrderUIDs(hexUIDs []string) []domain.OrderUid {
	out := make([]domain.OrderUid, 0, len(hexUIDs))
	for _, h := range hexUIDs {
		b, err := hexutil.Decode(h)
		if err != nil || len(b) != len(domain.OrderUid{}) {
			continue
		}
		var uid domain.OrderUid
		copy(uid[:], b)
		out = append(out, uid)
	}
	return out
}
