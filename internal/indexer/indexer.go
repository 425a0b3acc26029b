// Package indexer implements C1: it streams settlement, ethflow
// order-placement and ethflow refund logs from the node, persists them,
// and detects and recovers from chain reorgs (spec §4.1).
package indexer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/KRD-Kai/services/internal/chain"
	"github.com/KRD-Kai/services/internal/metrics"
	"github.com/KRD-Kai/services/internal/persistence"
)

func bigFromUint64(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

// Config bounds a single indexing pass.
type Config struct {
	MaxRange     uint64 // max blocks fetched per get_logs call
	ReorgSafety  uint64 // blocks beyond which a log is considered final
}

func DefaultConfig() Config {
	return Config{MaxRange: 5000, ReorgSafety: 64}
}

// heightHash is one entry of the in-memory rollback window the indexer
// keeps so it can walk backwards on a reorg without re-reading history
// from the node for every block (spec §9: "IndexedRange{from,to,hash_at_to}
// per source is sufficient").
type heightHash struct {
	height uint64
	hash   common.Hash
}

// Indexer drives one event source end to end: discover the cursor,
// fetch+decode+persist new logs, detect and roll back reorgs.
type Indexer struct {
	source  Source
	client  chain.Client
	cursors *persistence.CursorsRepo
	events  *persistence.OrderEventsRepo
	settle  *persistence.SettlementsRepo
	link    *persistence.AuctionTransactionRepo
	metrics *metrics.Metrics
	cfg     Config

	window []heightHash
}

func New(source Source, client chain.Client, cursors *persistence.CursorsRepo, events *persistence.OrderEventsRepo, settle *persistence.SettlementsRepo, link *persistence.AuctionTransactionRepo, m *metrics.Metrics, cfg Config) *Indexer {
	return &Indexer{
		source:  source,
		client:  client,
		cursors: cursors,
		events:  events,
		settle:  settle,
		link:    link,
		metrics: m,
		cfg:     cfg,
	}
}

// RunMaintenance is the indexer's sole exposed operation (spec §4.1),
// invoked on every new block. It never returns a reorg as an error to the
// caller: reorgs are handled internally and never surfaced (spec §7,
// IndexerReorg: "never surfaced to callers").
func (idx *Indexer) RunMaintenance(ctx context.Context, currentBlock *types.Header) error {
	cursor, err := idx.discoverCursor(ctx, currentBlock)
	if err != nil {
		return fmt.Errorf("discover cursor for %s: %w", idx.source.Name, err)
	}

	if err := idx.reconcileReorg(ctx, &cursor); err != nil {
		return fmt.Errorf("reorg handling for %s: %w", idx.source.Name, err)
	}

	head := currentBlock.Number.Uint64()
	from := cursor.LastIndexed + 1
	to := head
	if to > from+idx.cfg.MaxRange {
		to = from + idx.cfg.MaxRange
	}
	if idx.metrics != nil {
		lag := int64(0)
		if head > cursor.LastIndexed {
			lag = int64(head - cursor.LastIndexed)
		}
		idx.metrics.IndexerLagBlocks.WithLabelValues(idx.source.Name).Set(float64(lag))
	}
	if from > to {
		return nil // nothing new since the last pass
	}

	addr, topics, fromB, toB := idx.source.Query(from, to)
	logs, err := idx.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: bigFromUint64(fromB),
		ToBlock:   bigFromUint64(toB),
		Addresses: []common.Address{addr},
		Topics:    [][]common.Hash{topics},
	})
	if err != nil {
		return fmt.Errorf("get_logs %s [%d,%d]: %w", idx.source.Name, from, to, err)
	}

	toHeader, err := idx.client.HeaderByNumber(ctx, to)
	if err != nil {
		return fmt.Errorf("header at %d: %w", to, err)
	}

	if err := idx.decodeAndPersist(ctx, logs, to, toHeader.Hash()); err != nil {
		return err
	}

	idx.pushWindow(heightHash{height: to, hash: toHeader.Hash()})
	return nil
}
