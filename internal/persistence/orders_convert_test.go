package persistence

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestParseU256(t *testing.T) {
	v, err := parseU256("12345")
	require.NoError(t, err)
	require.Equal(t, "12345", v.Dec())
}

func TestParseU256Invalid(t *testing.T) {
	_, err := parseU256("not-a-number")
	require.Error(t, err)
}

func validOrderRow() orderRow {
	return orderRow{
		UID:        make([]byte, 56),
		Owner:      common.HexToAddress("0x1111111111111111111111111111111111111111").Bytes(),
		SellToken:  common.HexToAddress("0x2222222222222222222222222222222222222222").Bytes(),
		BuyToken:   common.HexToAddress("0x3333333333333333333333333333333333333333").Bytes(),
		SellAmount: "100",
		BuyAmount:  "200",
		FeeAmount:  "1",
		Filled:     "0",
		ValidFrom:  time.Unix(0, 0),
		ValidTo:    time.Unix(1000, 0),
		Kind:       "sell",
		Class:      "market",
	}
}

func TestOrderRowToDomain(t *testing.T) {
	row := validOrderRow()
	row.UID[0] = 0xAB

	o, err := row.toDomain()
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), o.UID[0])
	require.Equal(t, "100", o.SellAmount.Dec())
	require.Equal(t, "200", o.BuyAmount.Dec())
	require.Equal(t, "1", o.FeeAmount.Dec())
	require.Equal(t, "0", o.Filled.Dec())
}

func TestOrderRowToDomainRejectsWrongUIDLength(t *testing.T) {
	row := validOrderRow()
	row.UID = make([]byte, 10)

	_, err := row.toDomain()
	require.Error(t, err)
}

func TestOrderRowToDomainRejectsMalformedAmount(t *testing.T) {
	row := validOrderRow()
	row.SellAmount = "not-a-number"

	_, err := row.toDomain()
	require.Error(t, err)
}
