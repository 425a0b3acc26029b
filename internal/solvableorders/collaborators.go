// Package solvableorders implements C3: it periodically rebuilds the set
// of orders eligible to enter the next auction, filtering on balance,
// allowance, signature validity, bad-token status and native-price
// availability (spec §4.3).
package solvableorders

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/KRD-Kai/services/internal/domain"
)

// BalanceFetcher returns the amount of token an owner can actually put up
// right now: min(balance, allowance to the settlement contract). Caching
// of this result is an implementation detail of the fetcher, not the
// cache (see cachingBalanceFetcher).
type BalanceFetcher interface {
	Available(ctx context.Context, owner, token common.Address) (*uint256.Int, error)
}

// PriceEstimator returns the native-token price of token, or ok=false if
// none could be obtained (spec §4.3 step 5).
type PriceEstimator interface {
	NativePrice(ctx context.Context, token common.Address) (price *uint256.Int, ok bool, err error)
}

// BadTokenDetector is the optional transfer-trace detector consulted when
// a token is neither explicitly allow-listed nor deny-listed (spec §4.3
// step 4).
type BadTokenDetector interface {
	IsBad(ctx context.Context, token common.Address) (bool, error)
}

// SignatureValidator verifies presign/eip-1271 orders at the current
// block (spec §4.3 step 3). The cache passes eip712/ethsign orders
// without consulting it; no ECDSA recovery is done in this package.
type SignatureValidator interface {
	IsValid(ctx context.Context, order *domain.Order, atBlock uint64) (bool, error)
}
