package indexer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/KRD-Kai/services/internal/domain"
)

// EventKind distinguishes the three log families C1 consumes (spec §1/§4.1):
// settlement, ethflow order placement and ethflow refund.
type EventKind int

const (
	EventSettlement EventKind = iota
	EventOrderPlacement
	EventRefund
)

// DecodedEvent is one decoded log, ready to persist.
type DecodedEvent struct {
	Kind        EventKind
	BlockNumber uint64
	LogIndex    uint64
	TxHash      common.Hash
	OrderUID    domain.OrderUid // set for OrderPlacement/Refund
}

// Source is one configured contract an indexer stream watches: the
// settlement contract is always present; the ethflow order-placement and
// refund contracts are optional (spec §4.1).
type Source struct {
	Name      string
	Address   common.Address
	Topics    []common.Hash
	Kind      EventKind
	StartBlock uint64
	FastStart bool // skip historical events, start from the current block

	// Decode turns a raw log matching Topics/Address into zero or more
	// DecodedEvents. A decoding error is logged and the log is skipped
	// (spec §4.1 step 4: "Decoding errors are fatal for the event... the
	// indexer continues").
	Decode func(log types.Log) ([]DecodedEvent, error)
}

// Query builds the eth_getLogs filter for this source over [from, to].
func (s Source) Query(from, to uint64) (common.Address, []common.Hash, uint64, uint64) {
	return s.Address, s.Topics, from, to
}
