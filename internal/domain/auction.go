package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AuctionID strictly increases across the lifetime of the deployment,
// starting at 1. The solvable-orders cache allocates it from a database
// sequence; the run-loop persists the auction row.
type AuctionID uint64

// Auction is an immutable snapshot of orders, native prices and fee
// policies taken at Block. Consumers only ever see a fully built Auction;
// there is no partially-constructed state visible outside the cache.
type Auction struct {
	ID         AuctionID
	Block      uint64
	Orders     []AuctionOrder
	Prices     map[common.Address]*uint256.Int
	RewardsCap *uint256.Int
}

// AuctionOrder pairs an Order with the fee policies attached for this
// particular auction round; policies are not renegotiated mid-round.
type AuctionOrder struct {
	Order       Order
	FeePolicies []FeePolicy
}

// HasNativePriceFor reports whether both tokens of order o have a price
// in the auction, which is required for every included order.
func (a *Auction) HasNativePriceFor(o *Order) bool {
	_, sellOK := a.Prices[o.SellToken]
	_, buyOK := a.Prices[o.BuyToken]
	return sellOK && buyOK
}

// OnlyLiquidityOrders reports whether every order in the auction is a
// liquidity order, which alone cannot produce a settleable round.
func (a *Auction) OnlyLiquidityOrders() bool {
	for _, ao := range a.Orders {
		if ao.Order.Class != OrderClassLiquidity {
			return false
		}
	}
	return true
}
