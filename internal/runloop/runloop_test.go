package runloop

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/KRD-Kai/services/internal/domain"
)

func TestBestParticipantTimeout(t *testing.T) {
	p := bestParticipant(domain.Driver{Name: "d1"}, nil, context.DeadlineExceeded)
	require.ErrorIs(t, p.Err, domain.ErrTimeout)
}

func TestBestParticipantNoSolutions(t *testing.T) {
	p := bestParticipant(domain.Driver{Name: "d1"}, nil, domain.ErrNoSolutions)
	require.ErrorIs(t, p.Err, domain.ErrNoSolutions)

	p = bestParticipant(domain.Driver{Name: "d1"}, nil, nil)
	require.ErrorIs(t, p.Err, domain.ErrNoSolutions)
}

func TestBestParticipantOtherErrorWrapsErrSolve(t *testing.T) {
	cause := errors.New("connection refused")
	p := bestParticipant(domain.Driver{Name: "d1"}, nil, cause)
	require.ErrorIs(t, p.Err, domain.ErrSolve)
	require.Contains(t, p.Err.Error(), "connection refused")
}

func TestBestParticipantZeroScore(t *testing.T) {
	p := bestParticipant(domain.Driver{Name: "d1"}, []domain.Solution{{Score: uint256.NewInt(0)}}, nil)
	require.ErrorIs(t, p.Err, domain.ErrZeroScore)
}

func TestBestParticipantPicksHighestScore(t *testing.T) {
	solutions := []domain.Solution{
		{ID: 1, Score: uint256.NewInt(10)},
		{ID: 2, Score: uint256.NewInt(99)},
		{ID: 3, Score: uint256.NewInt(50)},
	}
	p := bestParticipant(domain.Driver{Name: "d1"}, solutions, nil)
	require.NoError(t, p.Err)
	require.Equal(t, domain.SolutionID(2), p.Solution.ID)
}

func TestScoreGreater(t *testing.T) {
	ineligible := domain.Participant{Err: domain.ErrSolve}
	eligible := domain.Participant{Solution: &domain.Solution{Score: uint256.NewInt(42)}}
	require.True(t, scoreGreater(eligible, ineligible))
	require.False(t, scoreGreater(ineligible, eligible))
	require.False(t, scoreGreater(ineligible, ineligible))

	low := domain.Participant{Solution: &domain.Solution{Score: uint256.NewInt(42)}}
	high := domain.Participant{Solution: &domain.Solution{Score: uint256.NewInt(43)}}
	require.True(t, scoreGreater(high, low))
	require.False(t, scoreGreater(low, high))

	// Both scores exceed 1<<62 (realistic wei-denominated surplus values);
	// a saturating int64 projection would make these compare equal.
	hugeLow := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	hugeHigh := new(uint256.Int).Add(hugeLow, uint256.NewInt(1))
	a := domain.Participant{Solution: &domain.Solution{Score: hugeLow}}
	b := domain.Participant{Solution: &domain.Solution{Score: hugeHigh}}
	require.True(t, scoreGreater(b, a))
	require.False(t, scoreGreater(a, b))
}

func TestSecondScore(t *testing.T) {
	participants := []domain.Participant{
		{Solution: &domain.Solution{Score: uint256.NewInt(100)}},
		{Err: domain.ErrZeroScore},
		{Solution: &domain.Solution{Score: uint256.NewInt(30)}},
	}
	require.True(t, secondScore(participants, 0).Eq(uint256.NewInt(30)))

	require.True(t, secondScore(participants, 2).Eq(uint256.NewInt(0)), "no participant after winnerIdx means zero")
}

func TestUint256SubFloat(t *testing.T) {
	f, ok := uint256SubFloat(uint256.NewInt(100), uint256.NewInt(40))
	require.True(t, ok)
	require.Equal(t, float64(60), f)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Idle, "idle"},
		{Building, "building"},
		{Competing, "competing"},
		{Winning, "winning"},
		{Revealing, "revealing"},
		{Settling, "settling"},
		{InFlight, "in_flight"},
		{Done, "done"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.s.String())
	}
}
