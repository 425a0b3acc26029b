package persistence

import (
	"context"
	"time"

	"github.com/KRD-Kai/services/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// OrdersRepo reads the orders table, which this core never writes: order
// placement is handled by an external user-facing API (spec §6).
type OrdersRepo struct{ db *DB }

func NewOrdersRepo(db *DB) *OrdersRepo { return &OrdersRepo{db: db} }

// orderRow mirrors the orders table's columns (plus the interactions and
// signature joins); see spec §3 for field semantics.
type orderRow struct {
	UID               []byte    `db:"uid"`
	Owner             []byte    `db:"owner"`
	SellToken         []byte    `db:"sell_token"`
	BuyToken          []byte    `db:"buy_token"`
	SellAmount        string    `db:"sell_amount"`
	BuyAmount         string    `db:"buy_amount"`
	FeeAmount         string    `db:"fee_amount"`
	ValidFrom         time.Time `db:"valid_from"`
	ValidTo           time.Time `db:"valid_to"`
	Kind              string    `db:"kind"`
	Class             string    `db:"class"`
	PartiallyFillable bool      `db:"partially_fillable"`
	SigningScheme     string    `db:"signing_scheme"`
	Signature         []byte    `db:"signature"`
	Filled            string    `db:"filled"`
}

// CandidateOrders loads orders whose validity interval contains now, whose
// filled amount is below the full amount, and whose owner is not in
// bannedOwners (spec §4.3 step 1). Balance/allowance, signature, bad-token
// and price filtering all happen later, in internal/solvableorders.
func (r *OrdersRepo) CandidateOrders(ctx context.Context, now time.Time, bannedOwners []common.Address) ([]domain.Order, error) {
	banned := make([][]byte, len(bannedOwners))
	for i, a := range bannedOwners {
		banned[i] = a.Bytes()
	}
	const query = `
		SELECT uid, owner, sell_token, buy_token, sell_amount, buy_amount,
		       fee_amount, valid_from, valid_to, kind, class,
		       partially_fillable, signing_scheme, signature, filled
		FROM orders
		WHERE valid_from <= $1 AND valid_to >= $1
		  AND filled < (CASE WHEN kind = 'sell' THEN sell_amount ELSE buy_amount END)
		  AND NOT (owner = ANY($2))`
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, query, now, banned); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toDomain()
		if err != nil {
			continue // a malformed row is dropped, not fatal to the round
		}
		orders = append(orders, o)
	}
	return orders, nil
}
