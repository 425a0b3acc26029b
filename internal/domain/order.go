// Package domain holds the core data model shared by every autopilot
// component: orders, auctions, solutions and the lifecycle events that
// accompany them.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// OrderUid is the 56-byte identifier of an order: 32 bytes of order digest,
// 20 bytes owner address, 4 bytes validTo timestamp, big-endian.
type OrderUid [56]byte

func (u OrderUid) String() string {
	return "0x" + common.Bytes2Hex(u[:])
}

// Owner extracts the order owner embedded in the uid.
func (u OrderUid) Owner() common.Address {
	var addr common.Address
	copy(addr[:], u[32:52])
	return addr
}

// OrderKind is the side of the trade the order was placed on.
type OrderKind string

const (
	OrderKindSell OrderKind = "sell"
	OrderKindBuy  OrderKind = "buy"
)

// OrderClass determines which fee-policy subset an order receives and
// whether it alone can produce a non-empty auction.
type OrderClass string

const (
	OrderClassMarket    OrderClass = "market"
	OrderClassLimit     OrderClass = "limit"
	OrderClassLiquidity OrderClass = "liquidity"
)

// SigningScheme is how the order's signature must be verified.
type SigningScheme string

const (
	SigningSchemeEip712  SigningScheme = "eip712"
	SigningSchemeEthSign SigningScheme = "ethsign"
	SigningSchemePreSign SigningScheme = "presign"
	SigningSchemeEip1271 SigningScheme = "eip1271"
)

// Interaction is a single pre- or post-settlement call the order requires.
type Interaction struct {
	Target   common.Address `json:"target"`
	Value    *uint256.Int   `json:"value"`
	CallData []byte         `json:"callData"`
}

// EthflowRefund carries the on-chain refund metadata for ethflow orders,
// populated only for orders placed through the ethflow contract.
type EthflowRefund struct {
	ValidTo     time.Time      `json:"validTo"`
	Refunder    common.Address `json:"refunder"`
	RefundedAt  *time.Time     `json:"refundedAt,omitempty"`
}

// Order is one user order as loaded from persistence. Inclusion in an
// auction requires ValidFrom <= now <= ValidTo, Filled < full amount,
// sufficient balance/allowance (or a satisfiable partial fill), and a
// signature that verifies at the current block.
type Order struct {
	UID   OrderUid
	Owner common.Address

	SellToken common.Address
	BuyToken  common.Address

	SellAmount *uint256.Int
	BuyAmount  *uint256.Int
	FeeAmount  *uint256.Int

	ValidFrom time.Time
	ValidTo   time.Time

	Kind  OrderKind
	Class OrderClass

	PartiallyFillable bool

	SigningScheme SigningScheme
	Signature     []byte

	PreInteractions  []Interaction
	PostInteractions []Interaction

	EthflowRefund *EthflowRefund

	AppData [32]byte

	// Filled is the amount already executed on-chain, in the order's
	// sell-token units for sell orders and buy-token units for buy orders.
	Filled *uint256.Int
}

// IsValidAt reports whether the order's validity window contains at.
func (o *Order) IsValidAt(at time.Time) bool {
	return !at.Before(o.ValidFrom) && !at.After(o.ValidTo)
}

// FullAmount is the amount the order trades when completely filled: the
// sell amount for sell orders, the buy amount for buy orders.
func (o *Order) FullAmount() *uint256.Int {
	if o.Kind == OrderKindBuy {
		return o.BuyAmount
	}
	return o.SellAmount
}

// Remaining is FullAmount minus Filled, floored at zero.
func (o *Order) Remaining() *uint256.Int {
	full := o.FullAmount()
	if o.Filled == nil || o.Filled.Cmp(full) >= 0 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(full, o.Filled)
}
