// Package cleanup implements C8: a background task that periodically
// deletes order-event rows older than a retention threshold (spec §4.8).
package cleanup

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/KRD-Kai/services/internal/persistence"
)

// Config is the task's interval/threshold pair.
type Config struct {
	Interval  time.Duration
	Threshold time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: 1 * time.Hour, Threshold: 30 * 24 * time.Hour}
}

// Task runs DeleteOlderThan on a ticker, concurrent with every other
// writer (spec §4.8: relies on the single-statement DELETE for atomicity,
// no coordination with the run-loop or indexer required).
type Task struct {
	events *persistence.OrderEventsRepo
	cfg    Config
}

func New(events *persistence.OrderEventsRepo, cfg Config) *Task {
	return &Task{events: events, cfg: cfg}
}

// Run blocks until ctx is cancelled, deleting expired rows every
// cfg.Interval.
func (t *Task) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.runOnce(ctx, time.Now())
		}
	}
}

func (t *Task) runOnce(ctx context.Context, now time.Time) {
	n, err := t.events.DeleteOlderThan(ctx, now, t.cfg.Threshold)
	if err != nil {
		log.Error("cleanup: failed to delete stale order events", "err", err)
		return
	}
	if n > 0 {
		log.Info("cleanup: deleted stale order events", "count", n, "threshold", t.cfg.Threshold)
	}
}
