package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/KRD-Kai/services/internal/domain"
	"github.com/KRD-Kai/services/internal/persistence"
)

// decodeAndPersist decodes every log with idx.source.Decode and writes
// the result together with the advanced cursor in one pass (spec §4.1
// step 2). A single log failing to decode is logged and skipped; it does
// not fail the whole batch (spec §4.1 step 4, §7 "Decoding errors are
// fatal for the event").
func (idx *Indexer) decodeAndPersist(ctx context.Context, logs []types.Log, to uint64, toHash common.Hash) error {
	var orderEvents []domain.OrderEvent
	now := time.Now()

	for _, l := range logs {
		decoded, err := idx.source.Decode(l)
		if err != nil {
			log.Error("failed to decode log, skipping", "source", idx.source.Name, "block", l.BlockNumber, "index", l.Index, "err", err)
			continue
		}
		for _, ev := range decoded {
			switch ev.Kind {
			case EventSettlement:
				if err := idx.settle.Insert(ctx, domain.SettlementEvent{
					BlockNumber: ev.BlockNumber,
					LogIndex:    ev.LogIndex,
					TxHash:      ev.TxHash,
				}); err != nil {
					return fmt.Errorf("insert settlement: %w", err)
				}
			case EventOrderPlacement:
				orderEvents = append(orderEvents, domain.OrderEvent{
					UID: ev.OrderUID, Timestamp: now, Label: domain.OrderEventCreated,
				})
			case EventRefund:
				orderEvents = append(orderEvents, domain.OrderEvent{
					UID: ev.OrderUID, Timestamp: now, Label: domain.OrderEventCancelled,
					Reason: "ethflow refund",
				})
			}
		}
	}

	if err := idx.events.InsertBatch(ctx, orderEvents); err != nil {
		return fmt.Errorf("insert order events: %w", err)
	}

	cursor := persistence.Cursor{Source: idx.source.Name, LastIndexed: to, HashAtLast: toHash}
	return idx.cursors.Store(ctx, cursor)
}
