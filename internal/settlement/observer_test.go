package settlement

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/KRD-Kai/services/internal/domain"
	"github.com/KRD-Kai/services/internal/metrics"
)

func TestDecodeAuctionIDTag(t *testing.T) {
	tests := []struct {
		name     string
		calldata []byte
		wantID   domain.AuctionID
		wantOK   bool
	}{
		{"too short", []byte{1, 2, 3}, 0, false},
		{"exact tag", append([]byte("prefix"), 0, 0, 0, 0, 0, 0, 0, 9), 9, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := decodeAuctionIDTag(tt.calldata)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				require.Equal(t, tt.wantID, id)
			}
		})
	}
}

func newTestObserver(cfg Config) *Observer {
	return New(nil, nil, nil, metrics.New(prometheus.NewRegistry()), cfg)
}

func TestGiveUpOrRetryTransient(t *testing.T) {
	o := newTestObserver(Config{ReorgSafety: 64, MaxRetries: 3})
	key := settlementKey{block: 100, log: 0}
	ev := domain.SettlementEvent{BlockNumber: 100, LogIndex: 0}

	err := o.giveUpOrRetry(key, ev, 101, errors.New("fetch failed"))
	require.Error(t, err, "recent failures below reorg safety must keep retrying")
	require.Equal(t, 1, o.attempts[key])
}

func TestGiveUpOrRetryAbandonsAfterReorgSafetyAndRetries(t *testing.T) {
	o := newTestObserver(Config{ReorgSafety: 10, MaxRetries: 2})
	key := settlementKey{block: 100, log: 0}
	ev := domain.SettlementEvent{BlockNumber: 100, LogIndex: 0}
	currentBlock := uint64(200) // well past ReorgSafety blocks old

	err := o.giveUpOrRetry(key, ev, currentBlock, errors.New("still failing"))
	require.Error(t, err, "first attempt must still retry even once old")

	err = o.giveUpOrRetry(key, ev, currentBlock, errors.New("still failing"))
	require.NoError(t, err, "once old and at MaxRetries attempts, the observer gives up silently")
	require.NotContains(t, o.attempts, key, "abandoned settlements must not keep accumulating attempts")
}

func TestGiveUpOrRetryNotOldKeepsRetryingRegardlessOfCount(t *testing.T) {
	o := newTestObserver(Config{ReorgSafety: 1000, MaxRetries: 1})
	key := settlementKey{block: 100, log: 0}
	ev := domain.SettlementEvent{BlockNumber: 100, LogIndex: 0}

	for i := 0; i < 5; i++ {
		err := o.giveUpOrRetry(key, ev, 150, errors.New("still failing"))
		require.Error(t, err, "settlement younger than reorg safety is never abandoned")
	}
	require.Equal(t, 5, o.attempts[key])
}
