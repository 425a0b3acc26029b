package domain

import "time"

// OrderEventLabel is a per-order lifecycle stamp. The solvable-orders
// cache writes Ready/Filtered; the run-loop writes Ready, Filtered (for
// liquidity-only auctions), Considered, Executing and Traded; the indexer
// writes Created/Cancelled for on-chain (ethflow) orders.
type OrderEventLabel string

const (
	OrderEventCreated    OrderEventLabel = "created"
	OrderEventReady      OrderEventLabel = "ready"
	OrderEventFiltered   OrderEventLabel = "filtered"
	OrderEventInvalid    OrderEventLabel = "invalid"
	OrderEventExecuting  OrderEventLabel = "executing"
	OrderEventConsidered OrderEventLabel = "considered"
	OrderEventTraded     OrderEventLabel = "traded"
	OrderEventCancelled  OrderEventLabel = "cancelled"
)

// OrderEvent is one row of the order_events table. Idempotence rule: do
// not insert a row whose Label equals the most recent existing label for
// the same UID; this is enforced at the persistence layer, not here.
type OrderEvent struct {
	UID       OrderUid
	Timestamp time.Time
	Label     OrderEventLabel
	Reason    string // populated for Filtered
}

// SettlementEvent is the on-chain settlement log, keyed by
// (BlockNumber, LogIndex), enriched with the submitting tx once known.
type SettlementEvent struct {
	BlockNumber uint64
	LogIndex    uint64
	TxHash      [32]byte
	TxFrom      *[20]byte
	TxNonce     *uint64
}
