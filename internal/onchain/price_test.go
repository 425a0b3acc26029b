package onchain

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/KRD-Kai/services/internal/chain/mockchain"
)

func TestPriceEstimatorNativePrice(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockchain.NewMockClient(ctrl)
	client.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Nil()).Return(u256Bytes(42), nil)

	e := NewPriceEstimator(client, common.Address{})
	price, ok, err := e.NativePrice(context.Background(), common.Address{})
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, price.Eq(uint256.NewInt(42)))
}

func TestPriceEstimatorRevertIsAbsenceNotError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockchain.NewMockClient(ctrl)
	client.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Nil()).Return(nil, errors.New("execution reverted"))

	e := NewPriceEstimator(client, common.Address{})
	_, ok, err := e.NativePrice(context.Background(), common.Address{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPriceEstimatorZeroPriceIsAbsence(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockchain.NewMockClient(ctrl)
	client.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Nil()).Return(u256Bytes(0), nil)

	e := NewPriceEstimator(client, common.Address{})
	_, ok, err := e.NativePrice(context.Background(), common.Address{})
	require.NoError(t, err)
	require.False(t, ok)
}
