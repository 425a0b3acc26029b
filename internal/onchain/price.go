package onchain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/KRD-Kai/services/internal/chain"
)

var priceOfSelector = selector("priceOf(address)")

// PriceEstimator implements solvableorders.PriceEstimator against a
// configured on-chain price oracle contract exposing priceOf(address) ->
// uint256 (the amount of native token one unit of token is worth).
// Any failed call (a revert such as no pool for the token, or an RPC
// failure) and a zero price are reported as ok=false with a nil error;
// NativePrice never returns an error.
type PriceEstimator struct {
	client chain.Client
	oracle common.Address
}

func NewPriceEstimator(client chain.Client, oracle common.Address) *PriceEstimator {
	return &PriceEstimator{client: client, oracle: oracle}
}

func (e *PriceEstimator) NativePrice(ctx context.Context, token common.Address) (*uint256.Int, bool, error) {
	data := append(append([]byte{}, priceOfSelector...), packAddress(token)...)
	price, err := callUint256(ctx, e.client, e.oracle, data)
	if err != nil {
		return nil, false, nil // any call failure is absence, not an error
	}
	if price.Sign() == 0 {
		return nil, false, nil
	}
	return price, true, nil
}
