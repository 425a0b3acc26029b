package shadow

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/KRD-Kai/services/internal/domain"
)

func TestBestParticipantPropagatesError(t *testing.T) {
	p := bestParticipant(domain.Driver{Name: "d1"}, nil, domain.ErrTimeout)
	require.ErrorIs(t, p.Err, domain.ErrTimeout)
}

func TestBestParticipantZeroScore(t *testing.T) {
	p := bestParticipant(domain.Driver{Name: "d1"}, []domain.Solution{{Score: uint256.NewInt(0)}}, nil)
	require.ErrorIs(t, p.Err, domain.ErrZeroScore)
}

func TestBestParticipantPicksHighest(t *testing.T) {
	solutions := []domain.Solution{
		{ID: 1, Score: uint256.NewInt(5)},
		{ID: 2, Score: uint256.NewInt(500)},
	}
	p := bestParticipant(domain.Driver{Name: "d1"}, solutions, nil)
	require.NoError(t, p.Err)
	require.Equal(t, domain.SolutionID(2), p.Solution.ID)
}

func TestErrorLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.ErrTimeout, "timeout"},
		{domain.ErrNoSolutions, "no_solutions"},
		{domain.ErrZeroScore, "zero_score"},
		{domain.ErrMismatch, "mismatch"},
		{domain.ErrSolve, "error"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, errorLabel(tt.err))
	}
}

func TestLoopHealthyIsAlwaysTrue(t *testing.T) {
	l := New(nil, nil, nil, nil, DefaultConfig())
	require.True(t, l.Healthy())
}

func TestScoreGreater(t *testing.T) {
	ineligible := domain.Participant{Err: domain.ErrSolve}
	eligible := domain.Participant{Solution: &domain.Solution{Score: uint256.NewInt(7)}}
	require.True(t, scoreGreater(eligible, ineligible))
	require.False(t, scoreGreater(ineligible, eligible))

	low := domain.Participant{Solution: &domain.Solution{Score: uint256.NewInt(7)}}
	high := domain.Participant{Solution: &domain.Solution{Score: uint256.NewInt(8)}}
	require.True(t, scoreGreater(high, low))
	require.False(t, scoreGreater(low, high))
}
