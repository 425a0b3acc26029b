// Package persistence implements the tables this core reads and writes
// (spec §6): orders (read-only), order_events, settlements,
// auction_transaction, auctions, solver_competitions. The schema beyond
// those tables, and any migration tooling, is an external concern.
package persistence

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
)

// DB is a thin handle shared by every repository in this package; all of
// them are safe for concurrent use, matching the many-writers-one-table
// model in spec §5 (label ownership disambiguates the writers).
type DB struct {
	*sqlx.DB
}

// Open connects to Postgres via the pgx stdlib driver and verifies
// connectivity with a ping under ctx.
func Open(ctx context.Context, dsn string) (*DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{DB: db}, nil
}
