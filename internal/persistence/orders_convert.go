package persistence

import (
	"fmt"

	"github.com/KRD-Kai/services/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func parseU256(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse u256 %q: %w", s, err)
	}
	return v, nil
}

func (row orderRow) toDomain() (domain.Order, error) {
	var o domain.Order
	if len(row.UID) != 56 {
		return o, fmt.Errorf("order uid has %d bytes, want 56", len(row.UID))
	}
	copy(o.UID[:], row.UID)
	o.Owner = common.BytesToAddress(row.Owner)
	o.SellToken = common.BytesToAddress(row.SellToken)
	o.BuyToken = common.BytesToAddress(row.BuyToken)

	var err error
	if o.SellAmount, err = parseU256(row.SellAmount); err != nil {
		return o, err
	}
	if o.BuyAmount, err = parseU256(row.BuyAmount); err != nil {
		return o, err
	}
	if o.FeeAmount, err = parseU256(row.FeeAmount); err != nil {
		return o, err
	}
	if o.Filled, err = parseU256(row.Filled); err != nil {
		return o, err
	}

	o.ValidFrom = row.ValidFrom
	o.ValidTo = row.ValidTo
	o.Kind = domain.OrderKind(row.Kind)
	o.Class = domain.OrderClass(row.Class)
	o.PartiallyFillable = row.PartiallyFillable
	o.SigningScheme = domain.SigningScheme(row.SigningScheme)
	o.Signature = row.Signature
	return o, nil
}
