package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KRD-Kai/services/internal/domain"
)

// AuctionsRepo is the sole writer of the auctions table: it owns the
// strictly-increasing auction id counter (spec §5).
type AuctionsRepo struct{ db *DB }

func NewAuctionsRepo(db *DB) *AuctionsRepo { return &AuctionsRepo{db: db} }

// auctionSnapshot is the JSON shape persisted in the auctions.snapshot
// column; re-serializing a loaded snapshot must byte-match the original
// (spec §8 round-trip law a), so field order here is fixed.
type auctionSnapshot struct {
	Block  uint64            `json:"block"`
	Orders []snapshotOrder   `json:"orders"`
	Prices map[string]string `json:"prices"`
}

type snapshotOrder struct {
	UID         string             `json:"uid"`
	FeePolicies []domain.FeePolicy `json:"feePolicies"`
}

// NextID allocates the next strictly-increasing auction id (spec invariant
// 1 in §8). The sequence backing this must itself be monotonic and
// gap-tolerant; a dedicated Postgres SEQUENCE is assumed to exist.
func (r *AuctionsRepo) NextID(ctx context.Context) (domain.AuctionID, error) {
	var id uint64
	if err := r.db.GetContext(ctx, &id, `SELECT nextval('auction_id_seq')`); err != nil {
		return 0, fmt.Errorf("allocate auction id: %w", err)
	}
	return domain.AuctionID(id), nil
}

// Persist writes the auction snapshot atomically (spec §4.6 step 3).
func (r *AuctionsRepo) Persist(ctx context.Context, a *domain.Auction) error {
	snap := auctionSnapshot{
		Block:  a.Block,
		Orders: make([]snapshotOrder, len(a.Orders)),
		Prices: make(map[string]string, len(a.Prices)),
	}
	for i, ao := range a.Orders {
		snap.Orders[i] = snapshotOrder{UID: ao.Order.UID.String(), FeePolicies: ao.FeePolicies}
	}
	for token, price := range a.Prices {
		snap.Prices[token.Hex()] = price.Dec()
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal auction snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO auctions (id, block, snapshot) VALUES ($1, $2, $3)`,
		uint64(a.ID), a.Block, blob)
	return err
}

// Load reconstructs the block and raw snapshot JSON for an auction id;
// full orders are resolved by the caller against the Order table by uid,
// since the snapshot carries uids, fee policies and prices, not full
// order bodies.
func (r *AuctionsRepo) Load(ctx context.Context, id domain.AuctionID) (block uint64, raw []byte, err error) {
	row := struct {
		Block    uint64 `db:"block"`
		Snapshot []byte `db:"snapshot"`
	}{}
	if err := r.db.GetContext(ctx, &row, `SELECT block, snapshot FROM auctions WHERE id = $1`, uint64(id)); err != nil {
		return 0, nil, err
	}
	return row.Block, row.Snapshot, nil
}

// LatestID returns the most recently persisted auction id, or 0 if none
// exists yet, so the caller can verify NextID keeps increasing.
func (r *AuctionsRepo) LatestID(ctx context.Context) (domain.AuctionID, error) {
	var id *uint64
	if err := r.db.GetContext(ctx, &id, `SELECT max(id) FROM auctions`); err != nil {
		return 0, err
	}
	if id == nil {
		return 0, nil
	}
	return domain.AuctionID(*id), nil
}
