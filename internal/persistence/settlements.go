package persistence

import (
	"context"

	"github.com/KRD-Kai/services/internal/domain"
)

// SettlementsRepo is written only by the event indexer (C1) and enriched
// by the settlement observer (C2) with (tx_from, tx_nonce).
type SettlementsRepo struct{ db *DB }

func NewSettlementsRepo(db *DB) *SettlementsRepo { return &SettlementsRepo{db: db} }

// Insert records a settlement log's unique (block_number, log_index) key.
func (r *SettlementsRepo) Insert(ctx context.Context, ev domain.SettlementEvent) error {
	const query = `
		INSERT INTO settlements (block_number, log_index, tx_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (block_number, log_index) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, ev.BlockNumber, ev.LogIndex, ev.TxHash[:])
	return err
}

// DeleteFrom removes every settlement at or above fromBlock, used when a
// reorg rewinds the indexer's tail (spec §4.1 step 3).
func (r *SettlementsRepo) DeleteFrom(ctx context.Context, fromBlock uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM settlements WHERE block_number >= $1`, fromBlock)
	return err
}

// settlementRow is a settlement row missing (tx_from, tx_nonce), returned
// to the settlement observer so it can look the transaction up.
type settlementRow struct {
	BlockNumber uint64 `db:"block_number"`
	LogIndex    uint64 `db:"log_index"`
	TxHash      []byte `db:"tx_hash"`
}

// Unenriched returns settlement logs still missing tx_from/tx_nonce.
func (r *SettlementsRepo) Unenriched(ctx context.Context, limit int) ([]domain.SettlementEvent, error) {
	const query = `
		SELECT block_number, log_index, tx_hash FROM settlements
		WHERE tx_from IS NULL
		ORDER BY block_number ASC
		LIMIT $1`
	var rows []settlementRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}
	out := make([]domain.SettlementEvent, 0, len(rows))
	for _, row := range rows {
		var ev domain.SettlementEvent
		ev.BlockNumber = row.BlockNumber
		ev.LogIndex = row.LogIndex
		copy(ev.TxHash[:], row.TxHash)
		out = append(out, ev)
	}
	return out, nil
}

// EnrichedUnlinked returns settlement logs that already have tx_from set
// but have no row in auction_transaction yet: rows where enrichment
// succeeded but the auction-id decode or the link write failed, and which
// Unenriched will therefore never surface again.
func (r *SettlementsRepo) EnrichedUnlinked(ctx context.Context, limit int) ([]domain.SettlementEvent, error) {
	const query = `
		SELECT s.block_number, s.log_index, s.tx_hash FROM settlements s
		WHERE s.tx_from IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM auction_transaction t
			WHERE t.block_number = s.block_number AND t.log_index = s.log_index
		  )
		ORDER BY s.block_number ASC
		LIMIT $1`
	var rows []settlementRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}
	out := make([]domain.SettlementEvent, 0, len(rows))
	for _, row := range rows {
		var ev domain.SettlementEvent
		ev.BlockNumber = row.BlockNumber
		ev.LogIndex = row.LogIndex
		copy(ev.TxHash[:], row.TxHash)
		out = append(out, ev)
	}
	return out, nil
}

// SetTxInfo enriches a settlement row with the transaction that emitted
// it, once the settlement observer has fetched it.
func (r *SettlementsRepo) SetTxInfo(ctx context.Context, blockNumber, logIndex uint64, txFrom [20]byte, txNonce uint64) error {
	const query = `
		UPDATE settlements SET tx_from = $3, tx_nonce = $4
		WHERE block_number = $1 AND log_index = $2`
	_, err := r.db.ExecContext(ctx, query, blockNumber, logIndex, txFrom[:], txNonce)
	return err
}
