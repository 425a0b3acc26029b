package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KRD-Kai/services/internal/domain"
)

// SolverCompetitionsRepo is written once per round by the run-loop (C6),
// recording every participant's outcome, the winner and the winning
// calldata (spec §4.6 step 11, invariant 2 in §8).
type SolverCompetitionsRepo struct{ db *DB }

func NewSolverCompetitionsRepo(db *DB) *SolverCompetitionsRepo {
	return &SolverCompetitionsRepo{db: db}
}

type participantRecord struct {
	Driver string `json:"driver"`
	Score  string `json:"score,omitempty"`
	Result string `json:"result"`
}

// Insert persists the full competition record for auctionID. participants
// must contain exactly one entry per configured driver present at round
// start (invariant 2, §8), even for drivers that errored out.
func (r *SolverCompetitionsRepo) Insert(ctx context.Context, auctionID domain.AuctionID, winner string, participants []domain.Participant, calldata *domain.Calldata) error {
	records := make([]participantRecord, len(participants))
	for i, p := range participants {
		rec := participantRecord{Driver: p.Driver.Name}
		switch {
		case p.Err != nil:
			rec.Result = p.Err.Error()
		case p.Solution != nil:
			rec.Score = p.Solution.Score.Dec()
			rec.Result = "ok"
		}
		records[i] = rec
	}
	blob, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	var internalized []byte
	if calldata != nil {
		internalized = calldata.Internalized
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO solver_competitions (auction_id, winner, participants, calldata)
		VALUES ($1, $2, $3, $4)`,
		uint64(auctionID), winner, blob, internalized)
	return err
}
