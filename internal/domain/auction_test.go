package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestAuctionHasNativePriceFor(t *testing.T) {
	sell := common.HexToAddress("0x1111111111111111111111111111111111111111")
	buy := common.HexToAddress("0x2222222222222222222222222222222222222222")
	missing := common.HexToAddress("0x3333333333333333333333333333333333333333")

	a := Auction{Prices: map[common.Address]*uint256.Int{
		sell: uint256.NewInt(1),
		buy:  uint256.NewInt(1),
	}}

	require.True(t, a.HasNativePriceFor(&Order{SellToken: sell, BuyToken: buy}))
	require.False(t, a.HasNativePriceFor(&Order{SellToken: sell, BuyToken: missing}))
}

func TestAuctionOnlyLiquidityOrders(t *testing.T) {
	tests := []struct {
		name   string
		orders []AuctionOrder
		want   bool
	}{
		{"empty is vacuously true", nil, true},
		{"all liquidity", []AuctionOrder{
			{Order: Order{Class: OrderClassLiquidity}},
			{Order: Order{Class: OrderClassLiquidity}},
		}, true},
		{"mixed", []AuctionOrder{
			{Order: Order{Class: OrderClassLiquidity}},
			{Order: Order{Class: OrderClassMarket}},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Auction{Orders: tt.orders}
			require.Equal(t, tt.want, a.OnlyLiquidityOrders())
		})
	}
}
