package onchain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDynamicBytes(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	out := encodeDynamicBytes(b, 2)

	require.Len(t, out, 32+32+32) // offset + length + one padded word
	require.Equal(t, uint64(64), new(big.Int).SetBytes(out[:32]).Uint64(), "offset must be headWords*32")
	require.Equal(t, uint64(3), new(big.Int).SetBytes(out[32:64]).Uint64(), "length must be len(b)")
	require.Equal(t, b, out[64:67])
	require.Equal(t, make([]byte, 29), out[67:], "content must be zero-padded to a 32-byte boundary")
}

func TestEncodeDynamicBytesEmpty(t *testing.T) {
	out := encodeDynamicBytes(nil, 1)
	require.Len(t, out, 32+32)
	require.Equal(t, uint64(32), new(big.Int).SetBytes(out[:32]).Uint64())
	require.Equal(t, uint64(0), new(big.Int).SetBytes(out[32:64]).Uint64())
}

func TestAllZero(t *testing.T) {
	require.True(t, allZero(make([]byte, 32)))
	require.False(t, allZero([]byte{0, 0, 1}))
	require.True(t, allZero(nil))
}
