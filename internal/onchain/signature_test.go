package onchain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/KRD-Kai/services/internal/chain/mockchain"
	"github.com/KRD-Kai/services/internal/domain"
)

func TestSignatureValidatorDefaultSchemeNeverCallsChain(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockchain.NewMockClient(ctrl) // no .EXPECT() calls: a CallContract call fails the test

	v := NewSignatureValidator(client, common.Address{})
	order := &domain.Order{SigningScheme: domain.SigningSchemeEip712}
	ok, err := v.IsValid(context.Background(), order, 100)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSignatureValidatorPreSignedTrue(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockchain.NewMockClient(ctrl)
	out := make([]byte, 32)
	out[31] = 1
	client.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Any()).Return(out, nil)

	v := NewSignatureValidator(client, common.Address{})
	order := &domain.Order{SigningScheme: domain.SigningSchemePreSign}
	ok, err := v.IsValid(context.Background(), order, 100)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSignatureValidatorPreSignedFalseWhenZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockchain.NewMockClient(ctrl)
	client.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Any()).Return(make([]byte, 32), nil)

	v := NewSignatureValidator(client, common.Address{})
	order := &domain.Order{SigningScheme: domain.SigningSchemePreSign}
	ok, err := v.IsValid(context.Background(), order, 100)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSignatureValidatorEip1271Valid(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockchain.NewMockClient(ctrl)
	ret := append([]byte{0x16, 0x26, 0xba, 0x7e}, make([]byte, 28)...)
	client.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Any()).Return(ret, nil)

	v := NewSignatureValidator(client, common.Address{})
	order := &domain.Order{SigningScheme: domain.SigningSchemeEip1271, Owner: common.HexToAddress("0xabc")}
	ok, err := v.IsValid(context.Background(), order, 100)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSignatureValidatorEip1271Invalid(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockchain.NewMockClient(ctrl)
	ret := append([]byte{0x00, 0x00, 0x00, 0x00}, make([]byte, 28)...)
	client.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Any()).Return(ret, nil)

	v := NewSignatureValidator(client, common.Address{})
	order := &domain.Order{SigningScheme: domain.SigningSchemeEip1271, Owner: common.HexToAddress("0xabc")}
	ok, err := v.IsValid(context.Background(), order, 100)
	require.NoError(t, err)
	require.False(t, ok)
}
