package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KRD-Kai/services/internal/domain"
)

func TestDecodeTrailingOrderUID(t *testing.T) {
	var want domain.OrderUid
	for i := range want {
		want[i] = byte(i + 1)
	}

	data := make([]byte, 32+len(want))
	copy(data[32:], want[:])

	got, err := decodeTrailingOrderUID(data)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeTrailingOrderUIDTooShort(t *testing.T) {
	_, err := decodeTrailingOrderUID(make([]byte, 10))
	require.Error(t, err)
}
