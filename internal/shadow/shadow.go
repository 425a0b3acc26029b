// Package shadow implements C7: a run-loop variant that competes the same
// solve/reveal protocol against an externally fetched auction, purely to
// observe driver behavior, never settling anything on-chain (spec §4.7).
package shadow

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/KRD-Kai/services/internal/domain"
	"github.com/KRD-Kai/services/internal/driver"
	"github.com/KRD-Kai/services/internal/metrics"
)

// Config mirrors runloop.Config's round-timing knobs; a shadow instance
// shares the same deadlines so its competitions are representative.
type Config struct {
	SolveDeadline      time.Duration
	SubmissionDeadline time.Duration
	PollInterval       time.Duration
	ScoreCap           *uint256.Int
	TrustedTokens      map[common.Address]bool
}

func DefaultConfig() Config {
	return Config{
		SolveDeadline:      15 * time.Second,
		SubmissionDeadline: 30 * time.Second,
		PollInterval:       500 * time.Millisecond,
		ScoreCap:           uint256.NewInt(0),
		TrustedTokens:      map[common.Address]bool{},
	}
}

type driverEntry struct {
	driver domain.Driver
	client *driver.Client
}

// Loop drives shadow rounds against a single upstream auction source. It
// never writes an auction, a solver_competition record, or a settlement.
type Loop struct {
	fetch   *Fetcher
	drivers []driverEntry
	metrics *metrics.Metrics
	cfg     Config

	prevID    domain.AuctionID
	prevBlock uint64
}

func New(fetch *Fetcher, drivers []domain.Driver, newClient func(domain.Driver) *driver.Client, m *metrics.Metrics, cfg Config) *Loop {
	entries := make([]driverEntry, len(drivers))
	for i, d := range drivers {
		entries[i] = driverEntry{driver: d, client: newClient(d)}
	}
	return &Loop{fetch: fetch, drivers: entries, metrics: m, cfg: cfg}
}

// Healthy is the shadow liveness probe: constant true (spec §4.7).
func (l *Loop) Healthy() bool { return true }

// Run loops shadow rounds until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	for ctx.Err() == nil {
		l.runRound(ctx)
	}
}

func (l *Loop) runRound(ctx context.Context) {
	auction, err := l.fetch.Fetch(ctx)
	if err != nil {
		log.Error("shadow: failed to fetch upstream auction", "err", err)
		l.sleep(ctx, l.cfg.PollInterval)
		return
	}

	// Dedup against the previously processed upstream snapshot (spec §4.7).
	if auction.ID == l.prevID || auction.Block == l.prevBlock {
		l.sleep(ctx, l.cfg.PollInterval)
		return
	}
	l.prevID, l.prevBlock = auction.ID, auction.Block

	// Empty check: identical treatment to the non-shadow loop (spec §8
	// "treat both identically ... unless there is a regression concern").
	if auction.OnlyLiquidityOrders() {
		log.Info("shadow: skipping liquidity-only auction", "auction", auction.ID)
		return
	}

	solveCtx, cancel := context.WithTimeout(ctx, l.cfg.SolveDeadline)
	deadline, _ := solveCtx.Deadline()
	participants := l.solveAll(solveCtx, auction, deadline)
	cancel()

	rand.Shuffle(len(participants), func(i, j int) { participants[i], participants[j] = participants[j], participants[i] })
	sort.SliceStable(participants, func(i, j int) bool {
		return scoreGreater(participants[i], participants[j])
	})

	revealCtx, revealCancel := context.WithTimeout(ctx, l.cfg.SubmissionDeadline)
	winnerIdx := l.selectWinner(revealCtx, participants, auction.ID)
	revealCancel()

	if l.metrics != nil {
		l.metrics.ShadowParticipants.Observe(float64(len(participants)))
	}

	// Steps 11-13 become logging and metrics only: no persistence, no
	// settle call (spec §4.7).
	for _, p := range participants {
		result := "considered"
		switch {
		case p.Err != nil:
			result = errorLabel(p.Err)
		}
		if l.metrics != nil {
			l.metrics.ShadowRoundsTotal.WithLabelValues(p.Driver.Name, result).Inc()
		}
	}
	if winnerIdx >= 0 {
		winner := participants[winnerIdx]
		log.Info("shadow: round winner",
			"auction", auction.ID, "driver", winner.Driver.Name,
			"score", winner.Solution.Score.Dec(), "orders", len(winner.Solution.TradedOrders))
		if l.metrics != nil {
			l.metrics.ShadowRoundsTotal.WithLabelValues(winner.Driver.Name, "win").Inc()
		}
	} else {
		log.Info("shadow: no valid winner this round", "auction", auction.ID)
	}
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (l *Loop) driverFor(d domain.Driver) *driverEntry {
	for i := range l.drivers {
		if l.drivers[i].driver.Name == d.Name {
			return &l.drivers[i]
		}
	}
	return nil
}

// solveAll fans out /solve concurrently, grounded on the same errgroup
// pattern as the non-shadow loop's solveAll (spec §9 "driver fan-out").
func (l *Loop) solveAll(ctx context.Context, auction *domain.Auction, deadline time.Time) []domain.Participant {
	participants := make([]domain.Participant, len(l.drivers))
	var g errgroup.Group
	for i := range l.drivers {
		i := i
		g.Go(func() error {
			d := l.drivers[i]
			solutions, err := d.client.Solve(ctx, auction, deadline, l.cfg.ScoreCap, l.cfg.TrustedTokens)
			participants[i] = bestParticipant(d.driver, solutions, err)
			return nil
		})
	}
	_ = g.Wait()
	return participants
}

func bestParticipant(d domain.Driver, solutions []domain.Solution, err error) domain.Participant {
	if err != nil {
		return domain.Participant{Driver: d, Err: err}
	}
	var best *domain.Solution
	for i := range solutions {
		if best == nil || solutions[i].Score.Cmp(best.Score) > 0 {
			best = &solutions[i]
		}
	}
	if best == nil {
		return domain.Participant{Driver: d, Err: domain.ErrNoSolutions}
	}
	if best.Score.Sign() == 0 {
		return domain.Participant{Driver: d, Err: domain.ErrZeroScore}
	}
	return domain.Participant{Driver: d, Solution: best}
}

// scoreGreater reports whether a outranks b for sort.SliceStable: eligible
// participants sort before ineligible ones, and among eligible participants
// the comparison is uint256.Int.Cmp directly so wei-denominated scores
// above 1<<62 (well within realistic surplus values) never collapse to the
// same rank the way an int64 projection would.
func scoreGreater(a, b domain.Participant) bool {
	ae, be := a.Eligible(), b.Eligible()
	if ae != be {
		return ae
	}
	if !ae {
		return false
	}
	return a.Solution.Score.Cmp(b.Solution.Score) > 0
}

func (l *Loop) selectWinner(ctx context.Context, participants []domain.Participant, auctionID domain.AuctionID) int {
	for i := range participants {
		p := &participants[i]
		if !p.Eligible() {
			continue
		}
		entry := l.driverFor(p.Driver)
		if entry == nil {
			continue
		}
		calldata, err := entry.client.Reveal(ctx, p.Solution.ID)
		if err != nil {
			p.Err = err
			continue
		}
		if !domain.HasValidAuctionTag(calldata.Internalized, auctionID) {
			p.Err = domain.ErrMismatch
			continue
		}
		p.Solution.Calldata = calldata
		return i
	}
	return -1
}

func errorLabel(err error) string {
	switch {
	case err == domain.ErrTimeout:
		return "timeout"
	case err == domain.ErrNoSolutions:
		return "no_solutions"
	case err == domain.ErrZeroScore:
		return "zero_score"
	case err == domain.ErrMismatch:
		return "mismatch"
	default:
		return "error"
	}
}
