package solvableorders

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

type fakeBalanceFetcher struct {
	calls atomic.Int32
	value *uint256.Int
}

func (f *fakeBalanceFetcher) Available(ctx context.Context, owner, token common.Address) (*uint256.Int, error) {
	f.calls.Add(1)
	return f.value, nil
}

func TestCachingBalanceFetcherCachesWithinAPass(t *testing.T) {
	inner := &fakeBalanceFetcher{value: uint256.NewInt(500)}
	c := newCachingBalanceFetcher(inner, 1<<16)

	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")

	for i := 0; i < 3; i++ {
		v, err := c.Available(context.Background(), owner, token)
		require.NoError(t, err)
		require.True(t, v.Eq(uint256.NewInt(500)))
	}
	require.Equal(t, int32(1), inner.calls.Load())
}

func TestCachingBalanceFetcherResetForcesRefetch(t *testing.T) {
	inner := &fakeBalanceFetcher{value: uint256.NewInt(10)}
	c := newCachingBalanceFetcher(inner, 1<<16)

	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")

	_, err := c.Available(context.Background(), owner, token)
	require.NoError(t, err)
	c.reset()
	_, err = c.Available(context.Background(), owner, token)
	require.NoError(t, err)
	require.Equal(t, int32(2), inner.calls.Load())
}

func TestCachingBalanceFetcherKeysByOwnerAndToken(t *testing.T) {
	inner := &fakeBalanceFetcher{value: uint256.NewInt(1)}
	c := newCachingBalanceFetcher(inner, 1<<16)

	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	b := common.HexToAddress("0x2222222222222222222222222222222222222222")

	_, err := c.Available(context.Background(), a, b)
	require.NoError(t, err)
	_, err = c.Available(context.Background(), b, a)
	require.NoError(t, err)
	require.Equal(t, int32(2), inner.calls.Load(), "swapping owner/token must be a distinct cache key")
}
