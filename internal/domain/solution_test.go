package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuctionIDTag(t *testing.T) {
	tag := AuctionIDTag(42)
	require.Equal(t, [8]byte{0, 0, 0, 0, 0, 0, 0, 42}, tag)
}

func TestHasValidAuctionTag(t *testing.T) {
	tag := AuctionIDTag(7)

	tests := []struct {
		name     string
		calldata []byte
		id       AuctionID
		want     bool
	}{
		{"too short", []byte{1, 2, 3}, 7, false},
		{"matches", append([]byte("prefix-data"), tag[:]...), 7, true},
		{"wrong id", append([]byte("prefix-data"), tag[:]...), 8, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, HasValidAuctionTag(tt.calldata, tt.id))
		})
	}
}
