package indexer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestTrimWindow(t *testing.T) {
	window := []heightHash{
		{height: 10}, {height: 20}, {height: 30}, {height: 40},
	}
	trimmed := trimWindow(window, 25)
	require.Equal(t, []heightHash{{height: 10}, {height: 20}}, trimmed)
}

func TestPushWindowEvictsOldestBeyondCapacity(t *testing.T) {
	idx := &Indexer{cfg: Config{ReorgSafety: 1}} // capacity = 1*2+16 = 18
	for i := uint64(0); i < 20; i++ {
		idx.pushWindow(heightHash{height: i, hash: common.Hash{}})
	}
	require.LessOrEqual(t, len(idx.window), 18)
	require.Equal(t, uint64(19), idx.window[len(idx.window)-1].height, "most recent entry must survive eviction")
}

func TestPushWindowKeepsAllWithinCapacity(t *testing.T) {
	idx := &Indexer{cfg: Config{ReorgSafety: 64}}
	for i := uint64(0); i < 5; i++ {
		idx.pushWindow(heightHash{height: i})
	}
	require.Len(t, idx.window, 5)
}
