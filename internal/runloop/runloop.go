// Package runloop implements C6: the single-writer state machine that
// orchestrates one auction round end to end — snapshot, competition,
// winner selection, settlement dispatch and reconciliation (spec §4.6).
package runloop

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/KRD-Kai/services/internal/domain"
	"github.com/KRD-Kai/services/internal/driver"
	"github.com/KRD-Kai/services/internal/feepolicy"
	"github.com/KRD-Kai/services/internal/metrics"
	"github.com/KRD-Kai/services/internal/persistence"
)

// State is one step of the per-round state machine (spec §4.6).
type State int

const (
	Idle State = iota
	Building
	Competing
	Winning
	Revealing
	Settling
	InFlight
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case Competing:
		return "competing"
	case Winning:
		return "winning"
	case Revealing:
		return "revealing"
	case Settling:
		return "settling"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Cache is the subset of *solvableorders.Cache the run-loop depends on.
type Cache interface {
	Current() *domain.Auction
	MarkInFlight(domain.OrderUid)
	ClearInFlight(domain.OrderUid)
}

// Config bounds one round's timing and scoring behavior (spec §4.6, §6).
type Config struct {
	SolveDeadline                time.Duration
	AdditionalDeadlineForRewards time.Duration
	SubmissionDeadline           time.Duration
	MaxSettlementTransactionWait time.Duration
	ScoreCap                     *uint256.Int
	PollInterval                 time.Duration
	TrustedTokens                map[common.Address]bool
}

func DefaultConfig() Config {
	return Config{
		SolveDeadline:                15 * time.Second,
		AdditionalDeadlineForRewards: 5 * time.Second,
		SubmissionDeadline:           30 * time.Second,
		MaxSettlementTransactionWait: 2 * time.Minute,
		ScoreCap:                     uint256.NewInt(0),
		PollInterval:                 500 * time.Millisecond,
		TrustedTokens:                map[common.Address]bool{},
	}
}

type driverEntry struct {
	driver domain.Driver
	client *driver.Client
}

// pendingRound tracks a dispatched-but-unreconciled round (spec §4.6 step
// 12-13): the submitted tx and the orders it claims to have traded.
type pendingRound struct {
	txHash common.Hash
	orders []domain.OrderUid
}

// RunLoop drives rounds for a fixed, pre-configured set of drivers. An
// empty driver set is a Fatal misconfiguration (spec §8 "Empty driver set
// -> fatal at startup") and is rejected by New.
type RunLoop struct {
	cache        Cache
	feePolicy    *feepolicy.Attacher
	drivers      []driverEntry
	auctions     *persistence.AuctionsRepo
	competitions *persistence.SolverCompetitionsRepo
	events       *persistence.OrderEventsRepo
	link         *persistence.AuctionTransactionRepo
	metrics      *metrics.Metrics
	cfg          Config

	mu      sync.Mutex
	pending map[domain.AuctionID]pendingRound
	state   State

	prevID    domain.AuctionID
	prevBlock uint64
}

// State returns the current round's state machine position (spec §4.6
// "State machine states per round"), safe for concurrent liveness checks.
func (rl *RunLoop) State() State {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.state
}

func (rl *RunLoop) setState(s State) {
	rl.mu.Lock()
	rl.state = s
	rl.mu.Unlock()
}

func New(
	cache Cache,
	feePolicy *feepolicy.Attacher,
	drivers []domain.Driver,
	newClient func(domain.Driver) *driver.Client,
	auctions *persistence.AuctionsRepo,
	competitions *persistence.SolverCompetitionsRepo,
	events *persistence.OrderEventsRepo,
	link *persistence.AuctionTransactionRepo,
	m *metrics.Metrics,
	cfg Config,
) (*RunLoop, error) {
	if len(drivers) == 0 {
		return nil, errors.New("runloop: at least one driver is required")
	}
	entries := make([]driverEntry, len(drivers))
	for i, d := range drivers {
		entries[i] = driverEntry{driver: d, client: newClient(d)}
	}
	return &RunLoop{
		cache:        cache,
		feePolicy:    feePolicy,
		drivers:      entries,
		auctions:     auctions,
		competitions: competitions,
		events:       events,
		link:         link,
		metrics:      m,
		cfg:          cfg,
		pending:      make(map[domain.AuctionID]pendingRound),
	}, nil
}

// Run loops rounds until ctx is cancelled, running reconciliation
// concurrently (spec §4.6 step 13 is explicitly asynchronous).
func (rl *RunLoop) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rl.reconcileLoop(ctx)
	}()

	for ctx.Err() == nil {
		rl.runRound(ctx)
	}
	wg.Wait()
}

// runRound executes steps 1-12 of spec §4.6 once, or returns early (still
// in Idle) if the snapshot hasn't moved on from the previous round.
func (rl *RunLoop) runRound(ctx context.Context) {
	rl.setState(Idle)

	// Step 1: snapshot.
	auction := rl.cache.Current()
	if auction == nil || auction.ID == rl.prevID || auction.Block == rl.prevBlock {
		rl.sleep(ctx, rl.cfg.PollInterval)
		return
	}
	rl.prevID, rl.prevBlock = auction.ID, auction.Block
	rl.setState(Building)

	// Step 2: empty check.
	if auction.OnlyLiquidityOrders() {
		rl.emitFiltered(ctx, auction, "liquidity-only-auction")
		rl.setState(Done)
		return
	}

	// Step 3: attach fee policies to a round-local copy (the cache's
	// snapshot is left untouched), then persist atomically.
	round := *auction
	round.Orders = append([]domain.AuctionOrder(nil), auction.Orders...)
	auction = &round
	rl.feePolicy.Attach(auction)
	if err := rl.auctions.Persist(ctx, auction); err != nil {
		log.Error("runloop: failed to persist auction", "auction", auction.ID, "err", err)
		rl.setState(Done)
		return
	}

	// Step 4: emit Ready (idempotent; the cache may already have done so).
	rl.emitLabel(ctx, auction, domain.OrderEventReady)

	// Steps 5-6: build request, fan out under the round deadline.
	rl.setState(Competing)
	solveCtx, cancel := context.WithTimeout(ctx, rl.cfg.SolveDeadline)
	ctxDeadline, _ := solveCtx.Deadline()
	// The deadline advertised to drivers includes the reward grace period,
	// even though solveCtx itself still cancels at solve_deadline.
	deadline := ctxDeadline.Add(rl.cfg.AdditionalDeadlineForRewards)
	participants := rl.solveAll(solveCtx, auction, deadline)
	cancel()

	// Step 7-8: rank by score (shuffle first for the tie-break, then
	// stable-sort descending).
	rand.Shuffle(len(participants), func(i, j int) { participants[i], participants[j] = participants[j], participants[i] })
	sort.SliceStable(participants, func(i, j int) bool {
		return scoreGreater(participants[i], participants[j])
	})

	rl.setState(Winning)
	revealCtx, revealCancel := context.WithTimeout(ctx, rl.cfg.SubmissionDeadline)
	winnerIdx, reward := rl.selectWinner(revealCtx, participants, auction.ID)
	revealCancel()
	if winnerIdx < 0 {
		rl.recordCompetition(ctx, auction.ID, "", participants, nil)
		rl.setState(Done)
		return
	}
	winner := participants[winnerIdx]

	// Step 11: record.
	rl.setState(Revealing)
	rl.emitConsideredAndExecuting(ctx, winner.Solution.TradedOrders)
	rl.recordCompetition(ctx, auction.ID, winner.Driver.Name, participants, winner.Solution.Calldata)
	if rl.metrics != nil {
		rl.metrics.Wins.Inc()
		rl.metrics.PerformanceRewards.Observe(reward)
		rl.metrics.SolverCompetitionSize.Observe(float64(len(participants)))
	}

	// Step 12: settle.
	rl.setState(Settling)
	entry := rl.driverFor(winner.Driver)
	if entry == nil {
		rl.setState(Done)
		return
	}
	txHash, _, err := entry.client.Settle(ctx, winner.Solution.ID, rl.cfg.MaxSettlementTransactionWait)
	if err != nil {
		log.Error("runloop: settle failed", "auction", auction.ID, "driver", winner.Driver.Name, "err", err)
		if rl.metrics != nil {
			rl.metrics.Results.WithLabelValues(winner.Driver.Name, "settle_error").Inc()
		}
		rl.setState(Done)
		return
	}
	rl.setState(InFlight)

	for _, uid := range winner.Solution.TradedOrders {
		rl.cache.MarkInFlight(uid)
	}
	rl.mu.Lock()
	rl.pending[auction.ID] = pendingRound{txHash: txHash, orders: winner.Solution.TradedOrders}
	rl.mu.Unlock()

	rl.setState(Done)
}

func (rl *RunLoop) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (rl *RunLoop) driverFor(d domain.Driver) *driverEntry {
	for i := range rl.drivers {
		if rl.drivers[i].driver.Name == d.Name {
			return &rl.drivers[i]
		}
	}
	return nil
}

// solveAll fans out /solve to every driver concurrently, bounded by the
// round deadline (spec §4.6 step 6, grounded on an errgroup join of
// independent per-driver tasks per spec §9 "driver fan-out").
func (rl *RunLoop) solveAll(ctx context.Context, auction *domain.Auction, deadline time.Time) []domain.Participant {
	participants := make([]domain.Participant, len(rl.drivers))
	var g errgroup.Group
	for i := range rl.drivers {
		i := i
		g.Go(func() error {
			d := rl.drivers[i]
			solutions, err := d.client.Solve(ctx, auction, deadline, rl.cfg.ScoreCap, rl.cfg.TrustedTokens)
			participants[i] = bestParticipant(d.driver, solutions, err)
			return nil
		})
	}
	_ = g.Wait() // each task swallows its own error into its Participant; never fails the group
	return participants
}

// bestParticipant reduces a driver's solution set to its single best
// (spec §4.6 step 7), remapping a zero-score best to ZeroScore.
func bestParticipant(d domain.Driver, solutions []domain.Solution, err error) domain.Participant {
	if err != nil {
		if errors.Is(err, domain.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return domain.Participant{Driver: d, Err: domain.ErrTimeout}
		}
		if errors.Is(err, domain.ErrNoSolutions) {
			return domain.Participant{Driver: d, Err: domain.ErrNoSolutions}
		}
		return domain.Participant{Driver: d, Err: errSolveWrap(err)}
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

func errSolveWrap(err error) error {
	return &solveError{cause: err}
}

type solveError struct{ cause error }

func (e *solveError) Error() string { return domain.ErrSolve.Error() + ": " + e.cause.Error() }
func (e *solveError) Unwrap() error { return domain.ErrSolve }

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

// selectWinner implements spec §4.6 steps 9-10: the best-scoring eligible
// participant is provisional winner; reveal and verify the auction-id
// tag, demoting to Mismatch and retrying with the remainder until either
// a valid winner is found or none remain.
func (rl *RunLoop) selectWinner(ctx context.Context, participants []domain.Participant, auctionID domain.AuctionID) (int, float64) {
	for i := range participants {
		p := &participants[i]
		if !p.Eligible() {
			continue
		}
		entry := rl.driverFor(p.Driver)
		if entry == nil {
			continue
		}
		calldata, err := entry.client.Reveal(ctx, p.Solution.ID)
		if err != nil {
			p.Err = err
			if rl.metrics != nil {
				rl.metrics.Results.WithLabelValues(p.Driver.Name, "reveal_error").Inc()
			}
			continue
		}
		if !domain.HasValidAuctionTag(calldata.Internalized, auctionID) {
			p.Err = domain.ErrMismatch
			if rl.metrics != nil {
				rl.metrics.Results.WithLabelValues(p.Driver.Name, "mismatch").Inc()
			}
			continue
		}
		p.Solution.Calldata = calldata
		second := secondScore(participants, i)
		reward, _ := uint256SubFloat(p.Solution.Score, second)
		if rl.metrics != nil {
			rl.metrics.Results.WithLabelValues(p.Driver.Name, "win").Inc()
		}
		return i, reward
	}
	return -1, 0
}

// secondScore finds the best score among participants after winnerIdx
// that are still eligible (not yet demoted), spec §4.6 step 9: "second
// .score = 0 if no second valid participant exists".
func secondScore(participants []domain.Participant, winnerIdx int) *uint256.Int {
	for j := winnerIdx + 1; j < len(participants); j++ {
		if participants[j].Eligible() {
			return participants[j].Solution.Score
		}
	}
	return uint256.NewInt(0)
}

func uint256SubFloat(winner, second *uint256.Int) (float64, bool) {
	diff := new(uint256.Int).Sub(winner, second)
	f, _ := new(big.Float).SetInt(diff.ToBig()).Float64()
	return f, diff.Sign() >= 0
}

func (rl *RunLoop) emitFiltered(ctx context.Context, auction *domain.Auction, reason string) {
	events := make([]domain.OrderEvent, len(auction.Orders))
	now := time.Now()
	for i, ao := range auction.Orders {
		events[i] = domain.OrderEvent{UID: ao.Order.UID, Timestamp: now, Label: domain.OrderEventFiltered, Reason: reason}
	}
	if err := rl.events.InsertBatch(ctx, events); err != nil {
		log.Error("runloop: failed to emit filtered events", "err", err)
	}
}

func (rl *RunLoop) emitLabel(ctx context.Context, auction *domain.Auction, label domain.OrderEventLabel) {
	events := make([]domain.OrderEvent, len(auction.Orders))
	now := time.Now()
	for i, ao := range auction.Orders {
		events[i] = domain.OrderEvent{UID: ao.Order.UID, Timestamp: now, Label: label}
	}
	if err := rl.events.InsertBatch(ctx, events); err != nil {
		log.Error("runloop: failed to emit order events", "label", label, "err", err)
	}
}

func (rl *RunLoop) emitConsideredAndExecuting(ctx context.Context, uids []domain.OrderUid) {
	now := time.Now()
	events := make([]domain.OrderEvent, 0, len(uids)*2)
	for _, uid := range uids {
		events = append(events,
			domain.OrderEvent{UID: uid, Timestamp: now, Label: domain.OrderEventConsidered},
			domain.OrderEvent{UID: uid, Timestamp: now, Label: domain.OrderEventExecuting},
		)
	}
	if err := rl.events.InsertBatch(ctx, events); err != nil {
		log.Error("runloop: failed to emit considered/executing events", "err", err)
	}
}

func (rl *RunLoop) recordCompetition(ctx context.Context, auctionID domain.AuctionID, winner string, participants []domain.Participant, calldata *domain.Calldata) {
	if err := rl.competitions.Insert(ctx, auctionID, winner, participants, calldata); err != nil {
		log.Error("runloop: failed to record solver competition", "auction", auctionID, "err", err)
	}
}

// reconcileLoop implements spec §4.6 step 13: once C1/C2 link a round's
// settlement back to its auction id, emit Traded for every order that
// round claimed and clear it from in-flight exclusion.
func (rl *RunLoop) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.reconcileOnce(ctx)
		}
	}
}

func (rl *RunLoop) reconcileOnce(ctx context.Context) {
	rl.mu.Lock()
	pending := make(map[domain.AuctionID]pendingRound, len(rl.pending))
	for id, r := range rl.pending {
		pending[id] = r
	}
	rl.mu.Unlock()

	for auctionID, round := range pending {
		linked, err := rl.link.LinkedFor(ctx, auctionID)
		if err != nil {
			log.Warn("runloop: reconcile lookup failed", "auction", auctionID, "err", err)
			continue
		}
		if !linked {
			continue
		}
		now := time.Now()
		events := make([]domain.OrderEvent, len(round.orders))
		for i, uid := range round.orders {
			events[i] = domain.OrderEvent{UID: uid, Timestamp: now, Label: domain.OrderEventTraded}
		}
		if err := rl.events.InsertBatch(ctx, events); err != nil {
			log.Error("runloop: failed to emit traded events", "auction", auctionID, "tx", round.txHash, "err", err)
			continue
		}
		for _, uid := range round.orders {
			rl.cache.ClearInFlight(uid)
		}
		rl.mu.Lock()
		delete(rl.pending, auctionID)
		rl.mu.Unlock()
	}
}
