package onchain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/KRD-Kai/services/internal/chain"
)

var (
	balanceOfSelector = selector("balanceOf(address)")
	allowanceSelector = selector("allowance(address,address)")
)

// BalanceFetcher implements solvableorders.BalanceFetcher against a live
// node: available = min(balanceOf(owner), allowance(owner, settlement)).
type BalanceFetcher struct {
	client     chain.Client
	settlement common.Address
}

func NewBalanceFetcher(client chain.Client, settlement common.Address) *BalanceFetcher {
	return &BalanceFetcher{client: client, settlement: settlement}
}

func (f *BalanceFetcher) Available(ctx context.Context, owner, token common.Address) (*uint256.Int, error) {
	balance, err := callUint256(ctx, f.client, token, append(append([]byte{}, balanceOfSelector...), packAddress(owner)...))
	if err != nil {
		return nil, err
	}
	allowance, err := callUint256(ctx, f.client, token, append(append([]byte{}, allowanceSelector...), append(packAddress(owner), packAddress(f.settlement)...)...))
	if err != nil {
		return nil, err
	}
	if allowance.Cmp(balance) < 0 {
		return allowance, nil
	}
	return balance, nil
}
