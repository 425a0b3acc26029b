package indexer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/KRD-Kai/services/internal/persistence"
)

// discoverCursor implements spec §4.1 step 1: on start, read last_indexed
// from persistence; if absent, use either the configured start block or,
// if FastStart is set, the current block (historical events are then
// deliberately skipped).
func (idx *Indexer) discoverCursor(ctx context.Context, currentBlock *types.Header) (persistence.Cursor, error) {
	cursor, err := idx.cursors.Load(ctx, idx.source.Name)
	if err == nil {
		return cursor, nil
	}
	if err != persistence.ErrNoCursor {
		return persistence.Cursor{}, err
	}

	start := idx.source.StartBlock
	if idx.source.FastStart {
		start = currentBlock.Number.Uint64()
	}
	if start > 0 {
		start--
	}
	fresh := persistence.Cursor{Source: idx.source.Name, LastIndexed: start}
	return fresh, idx.cursors.Store(ctx, fresh)
}

// reconcileReorg implements spec §4.1 step 3. It compares the hash we
// recorded for cursor.LastIndexed against the node's current hash at that
// height; on mismatch it walks backwards through the in-memory window
// (falling back to height 0 when no window entry agrees), deletes every
// row above the agreed height, and rewinds the cursor there.
func (idx *Indexer) reconcileReorg(ctx context.Context, cursor *persistence.Cursor) error {
	if cursor.LastIndexed == 0 || cursor.HashAtLast == [32]byte{} {
		return nil // genesis or freshly discovered cursor: no recorded hash to compare against
	}
	nodeHeader, err := idx.client.HeaderByNumber(ctx, cursor.LastIndexed)
	if err != nil {
		return fmt.Errorf("header at cursor height %d: %w", cursor.LastIndexed, err)
	}
	if nodeHeader.Hash() == cursor.HashAtLast {
		return nil // no reorg
	}

	log.Warn("reorg detected", "source", idx.source.Name, "height", cursor.LastIndexed)
	if idx.metrics != nil {
		idx.metrics.IndexerReorgsTotal.WithLabelValues(idx.source.Name).Inc()
	}

	agreedHeight, agreedHash, err := idx.walkBackToCommonAncestor(ctx, cursor.LastIndexed)
	if err != nil {
		return err
	}

	if err := idx.settle.DeleteFrom(ctx, agreedHeight+1); err != nil {
		return fmt.Errorf("rewind settlements: %w", err)
	}
	if err := idx.link.DeleteFrom(ctx, agreedHeight+1); err != nil {
		return fmt.Errorf("rewind auction_transaction: %w", err)
	}

	cursor.LastIndexed = agreedHeight
	cursor.HashAtLast = agreedHash
	idx.window = trimWindow(idx.window, agreedHeight)
	return idx.cursors.Store(ctx, *cursor)
}

// walkBackToCommonAncestor finds the highest height at or below from
// whose node-reported hash matches what we last recorded for it. Only the
// heights held in the in-memory window are candidates (one header fetch
// each, newest first); if none agrees it falls back to height 0.
func (idx *Indexer) walkBackToCommonAncestor(ctx context.Context, from uint64) (uint64, common.Hash, error) {
	for i := len(idx.window) - 1; i >= 0; i-- {
		entry := idx.window[i]
		if entry.height > from {
			continue
		}
		header, err := idx.client.HeaderByNumber(ctx, entry.height)
		if err != nil {
			return 0, common.Hash{}, fmt.Errorf("header at %d during reorg walk: %w", entry.height, err)
		}
		if header.Hash() == entry.hash {
			return entry.height, entry.hash, nil
		}
	}
	// Nothing in the window agreed (a reorg deeper than our retained
	// window, or a cold start after a restart): fall back to height 0,
	// which is always canonical.
	header, err := idx.client.HeaderByNumber(ctx, 0)
	if err != nil {
		return 0, common.Hash{}, fmt.Errorf("header at genesis during reorg walk: %w", err)
	}
	return 0, header.Hash(), nil
}

func trimWindow(window []heightHash, maxHeight uint64) []heightHash {
	out := window[:0]
	for _, e := range window {
		if e.height <= maxHeight {
			out = append(out, e)
		}
	}
	return out
}

func (idx *Indexer) pushWindow(e heightHash) {
	idx.window = append(idx.window, e)
	if uint64(len(idx.window)) > idx.cfg.ReorgSafety*2+16 {
		idx.window = idx.window[1:]
	}
}
