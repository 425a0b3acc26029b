package persistence

import (
	"context"
	"time"

	"github.com/KRD-Kai/services/internal/domain"
)

// OrderEventsRepo writes order_events. Multiple components share this
// table (cache, run-loop, indexer), and the cache and run-loop both write
// Ready and Filtered; the idempotence rule keeps repeated writes of the
// same label from piling up duplicate rows.
type OrderEventsRepo struct{ db *DB }

func NewOrderEventsRepo(db *DB) *OrderEventsRepo { return &OrderEventsRepo{db: db} }

// Insert records label for uid at timestamp, unless the most recent
// existing row for uid already carries that label (spec §3, invariant 4
// in §8). The IS DISTINCT FROM correlated subquery makes this a single
// statement, so there is no read-then-write race between concurrent
// writers touching different order_uids.
func (r *OrderEventsRepo) Insert(ctx context.Context, ev domain.OrderEvent) error {
	const query = `
		INSERT INTO order_events (order_uid, timestamp, label, reason)
		SELECT $1, $2, $3, $4
		WHERE $3 IS DISTINCT FROM (
			SELECT label FROM order_events
			WHERE order_uid = $1
			ORDER BY timestamp DESC
			LIMIT 1
		)`
	_, err := r.db.ExecContext(ctx, query, ev.UID[:], ev.Timestamp, string(ev.Label), ev.Reason)
	return err
}

// InsertBatch inserts a batch of events in one transaction, subject to
// each event's idempotence check individually (spec §5 backpressure:
// "event writes are batched").
func (r *OrderEventsRepo) InsertBatch(ctx context.Context, events []domain.OrderEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO order_events (order_uid, timestamp, label, reason)
		SELECT $1, $2, $3, $4
		WHERE $3 IS DISTINCT FROM (
			SELECT label FROM order_events
			WHERE order_uid = $1
			ORDER BY timestamp DESC
			LIMIT 1
		)`
	for _, ev := range events {
		if _, err := tx.ExecContext(ctx, query, ev.UID[:], ev.Timestamp, string(ev.Label), ev.Reason); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteOlderThan deletes rows with timestamp < now-threshold in one
// statement (spec §4.8 C8 periodic cleanup); the single DELETE is atomic
// with respect to concurrent inserts from other writers.
func (r *OrderEventsRepo) DeleteOlderThan(ctx context.Context, now time.Time, threshold time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM order_events WHERE timestamp < $1`, now.Add(-threshold))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
