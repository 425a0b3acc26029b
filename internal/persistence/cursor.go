package persistence

import (
	"context"
	"errors"
)

// CursorsRepo tracks the indexer cursor (spec §3 "Indexer Cursor"): the
// last block range whose logs have been durably persisted, per event
// source, plus the hash observed at that height so a reorg can be
// detected on the next pass.
type CursorsRepo struct{ db *DB }

func NewCursorsRepo(db *DB) *CursorsRepo { return &CursorsRepo{db: db} }

// Cursor is the per-source indexing position.
type Cursor struct {
	Source      string
	LastIndexed uint64
	HashAtLast  [32]byte
}

var ErrNoCursor = errors.New("no cursor persisted for source")

func (r *CursorsRepo) Load(ctx context.Context, source string) (Cursor, error) {
	row := struct {
		LastIndexed uint64 `db:"last_indexed"`
		HashAtLast  []byte `db:"hash_at_last"`
	}{}
	err := r.db.GetContext(ctx, &row, `
		SELECT last_indexed, hash_at_last FROM indexer_cursors WHERE source = $1`, source)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return Cursor{}, ErrNoCursor
		}
		return Cursor{}, err
	}
	c := Cursor{Source: source, LastIndexed: row.LastIndexed}
	copy(c.HashAtLast[:], row.HashAtLast)
	return c, nil
}

// Store upserts the cursor in a statement of its own. It does not join a
// transaction with the event writes that precede it, so the settlement
// rows, the order events and the cursor are committed separately.
func (r *CursorsRepo) Store(ctx context.Context, c Cursor) error {
	const query = `
		INSERT INTO indexer_cursors (source, last_indexed, hash_at_last)
		VALUES ($1, $2, $3)
		ON CONFLICT (source) DO UPDATE SET last_indexed = $2, hash_at_last = $3`
	_, err := r.db.ExecContext(ctx, query, c.Source, c.LastIndexed, c.HashAtLast[:])
	return err
}
