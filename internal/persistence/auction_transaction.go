package persistence

import (
	"context"

	"github.com/KRD-Kai/services/internal/domain"
)

// AuctionTransactionRepo is the settlement->auction link table produced
// by the settlement observer (C2). Grounded on
// crates/autopilot/src/database/auction_transaction.rs: unique on
// (block, log), and an existing link is never overwritten.
type AuctionTransactionRepo struct{ db *DB }

func NewAuctionTransactionRepo(db *DB) *AuctionTransactionRepo {
	return &AuctionTransactionRepo{db: db}
}

// Link records that the settlement at (blockNumber, logIndex) belongs to
// auctionID. A pre-existing link is left untouched (ON CONFLICT DO
// NOTHING), matching "never overwrite an existing link" (spec §4.2).
func (r *AuctionTransactionRepo) Link(ctx context.Context, blockNumber, logIndex uint64, auctionID domain.AuctionID) error {
	const query = `
		INSERT INTO auction_transaction (block_number, log_index, auction_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (block_number, log_index) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, blockNumber, logIndex, uint64(auctionID))
	return err
}

// AuctionIDFor looks up the auction linked to a settlement, if any.
func (r *AuctionTransactionRepo) AuctionIDFor(ctx context.Context, blockNumber, logIndex uint64) (domain.AuctionID, bool, error) {
	var id uint64
	err := r.db.GetContext(ctx, &id, `
		SELECT auction_id FROM auction_transaction
		WHERE block_number = $1 AND log_index = $2`, blockNumber, logIndex)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return 0, false, nil
		}
		return 0, false, err
	}
	return domain.AuctionID(id), true, nil
}

// LinkedFor is the reverse of AuctionIDFor: it reports whether any
// settlement has been linked to auctionID yet, used by the run-loop to
// reconcile a dispatched round once C1/C2 observe its on-chain settlement
// (spec §4.6 step 13).
func (r *AuctionTransactionRepo) LinkedFor(ctx context.Context, auctionID domain.AuctionID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM auction_transaction WHERE auction_id = $1)`, uint64(auctionID))
	return exists, err
}

// DeleteFrom removes links for settlements at or above fromBlock, used
// when a reorg rewinds the indexer's tail.
func (r *AuctionTransactionRepo) DeleteFrom(ctx context.Context, fromBlock uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auction_transaction WHERE block_number >= $1`, fromBlock)
	return err
}
