package solvableorders

import (
	"context"
	"math/big"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/KRD-Kai/services/internal/domain"
	"github.com/KRD-Kai/services/internal/metrics"
	"github.com/KRD-Kai/services/internal/persistence"
)

// Config bounds one rebuild pass.
type Config struct {
	UpdateInterval time.Duration
	MaxAuctionAge  time.Duration

	DustLimit             *uint256.Int
	LimitOrderPriceFactor float64 // fraction of full_amount a partial order must clear, in [0,1]

	BalanceCacheBytes int
	BadTokenTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		UpdateInterval:        time.Second * 2,
		MaxAuctionAge:         time.Minute,
		DustLimit:             uint256.NewInt(1),
		LimitOrderPriceFactor: 0.95,
		BalanceCacheBytes:     32 * 1024 * 1024,
		BadTokenTTL:           time.Hour,
	}
}

// Cache is the single-writer, many-reader solvable-orders cache (spec
// §4.3, §9 "versioned copy-on-write snapshot"). One goroutine (Run) is
// the exclusive writer; Current()/LastUpdateTime() are safe for
// concurrent readers via a mutex-guarded pointer swap.
type Cache struct {
	orders   *persistence.OrdersRepo
	events   *persistence.OrderEventsRepo
	auctions *persistence.AuctionsRepo
	balances *cachingBalanceFetcher
	prices   PriceEstimator
	sigs     SignatureValidator
	badToken *BadTokenFilter
	metrics  *metrics.Metrics
	cfg      Config

	bannedOwners []common.Address
	inFlight     mapset.Set[domain.OrderUid]

	mu         sync.RWMutex
	current    *domain.Auction
	lastUpdate time.Time

	blockCh chan uint64
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func New(
	orders *persistence.OrdersRepo,
	events *persistence.OrderEventsRepo,
	auctions *persistence.AuctionsRepo,
	balances BalanceFetcher,
	prices PriceEstimator,
	sigs SignatureValidator,
	badToken *BadTokenFilter,
	m *metrics.Metrics,
	bannedOwners []common.Address,
	cfg Config,
) *Cache {
	return &Cache{
		orders:       orders,
		events:       events,
		auctions:     auctions,
		balances:     newCachingBalanceFetcher(balances, cfg.BalanceCacheBytes),
		prices:       prices,
		sigs:         sigs,
		badToken:     badToken,
		metrics:      m,
		cfg:          cfg,
		bannedOwners: bannedOwners,
		inFlight:     mapset.NewSet[domain.OrderUid](),
		blockCh:      make(chan uint64, 1),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Current returns the most recently built auction snapshot (spec §4.3
// "Readers"). Safe for concurrent use.
func (c *Cache) Current() *domain.Auction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// LastUpdateTime returns the timestamp of the most recent successful
// rebuild.
func (c *Cache) LastUpdateTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// Healthy reports liveness: now - LastUpdateTime <= MaxAuctionAge.
func (c *Cache) Healthy(now time.Time) bool {
	last := c.LastUpdateTime()
	if last.IsZero() {
		return false
	}
	return now.Sub(last) <= c.cfg.MaxAuctionAge
}

// MarkInFlight excludes uid from the next rebuild until ClearInFlight is
// called, implementing spec §9 "in-flight exclusion" (run-loop step 12).
func (c *Cache) MarkInFlight(uid domain.OrderUid) { c.inFlight.Add(uid) }

// ClearInFlight re-admits uid to future rebuilds (run-loop step 13).
func (c *Cache) ClearInFlight(uid domain.OrderUid) { c.inFlight.Remove(uid) }

// NotifyBlock wakes the update loop on a new block (spec §4.3 scheduling:
// "additionally whenever a new block arrives"). Non-blocking: a pending
// notification is coalesced if the loop hasn't consumed the last one yet.
func (c *Cache) NotifyBlock(block uint64) {
	select {
	case c.blockCh <- block:
	default:
	}
}

// Run starts the single-writer update loop and blocks until ctx is
// cancelled or Stop is called. Grounded on core/txpool's loop(): a ticker
// plus an event channel feeding one serialized update at a time, never
// running two rebuilds concurrently.
func (c *Cache) Run(ctx context.Context, latestBlock func(context.Context) (uint64, error)) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case block := <-c.blockCh:
			c.tryUpdate(ctx, block)
		case <-ticker.C:
			block, err := latestBlock(ctx)
			if err != nil {
				log.Warn("solvable-orders cache: failed to read latest block", "err", err)
				continue
			}
			c.tryUpdate(ctx, block)
		}
	}
}

func (c *Cache) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Cache) tryUpdate(ctx context.Context, block uint64) {
	if err := c.update(ctx, block); err != nil {
		log.Error("solvable-orders cache rebuild failed", "block", block, "err", err)
	}
}

// update rebuilds the snapshot per spec §4.3 steps 1-6.
func (c *Cache) update(ctx context.Context, currentBlock uint64) error {
	c.balances.reset()
	now := time.Now()

	candidates, err := c.orders.CandidateOrders(ctx, now, c.bannedOwners)
	if err != nil {
		return err
	}

	var (
		included []domain.Order
		filtered []domain.OrderEvent
	)
	for i := range candidates {
		o := &candidates[i]
		if c.inFlight.Contains(o.UID) {
			continue // excluded silently; not a Filtered event, just not yet eligible
		}

		if reason, ok := c.passesBalance(ctx, o); !ok {
			filtered = append(filtered, filteredEvent(o.UID, reason))
			c.bump(reason)
			continue
		}
		if ok, err := c.passesSignature(ctx, o, currentBlock); err != nil {
			log.Warn("signature validation error, filtering order", "uid", o.UID, "err", err)
			filtered = append(filtered, filteredEvent(o.UID, "signature-error"))
			c.bump("signature-error")
			continue
		} else if !ok {
			filtered = append(filtered, filteredEvent(o.UID, "invalid-signature"))
			c.bump("invalid-signature")
			continue
		}
		if bad, err := c.badTokenBad(ctx, o); err != nil {
			log.Warn("bad-token detector error, filtering order", "uid", o.UID, "err", err)
			filtered = append(filtered, filteredEvent(o.UID, "bad-token-error"))
			c.bump("bad-token-error")
			continue
		} else if bad {
			filtered = append(filtered, filteredEvent(o.UID, "bad-token"))
			c.bump("bad-token")
			continue
		}

		included = append(included, *o)
	}

	prices := make(map[common.Address]*uint256.Int)
	final := make([]domain.Order, 0, len(included))
	for _, o := range included {
		sellPrice, sellOK, err := c.prices.NativePrice(ctx, o.SellToken)
		if err != nil {
			log.Warn("native price fetch error, filtering order", "uid", o.UID, "token", o.SellToken, "err", err)
			filtered = append(filtered, filteredEvent(o.UID, "price-fetch-error"))
			c.bump("price-fetch-error")
			continue
		}
		buyPrice, buyOK, err := c.prices.NativePrice(ctx, o.BuyToken)
		if err != nil {
			log.Warn("native price fetch error, filtering order", "uid", o.UID, "token", o.BuyToken, "err", err)
			filtered = append(filtered, filteredEvent(o.UID, "price-fetch-error"))
			c.bump("price-fetch-error")
			continue
		}
		if !sellOK || !buyOK {
			filtered = append(filtered, filteredEvent(o.UID, "missing-native-price"))
			c.bump("missing-native-price")
			continue
		}
		prices[o.SellToken] = sellPrice
		prices[o.BuyToken] = buyPrice
		final = append(final, o)
	}

	id, err := c.auctions.NextID(ctx)
	if err != nil {
		return err
	}

	auction := &domain.Auction{
		ID:     id,
		Block:  currentBlock,
		Orders: make([]domain.AuctionOrder, len(final)),
		Prices: prices,
	}
	for i, o := range final {
		auction.Orders[i] = domain.AuctionOrder{Order: o}
	}

	ready := make([]domain.OrderEvent, len(final))
	for i, o := range final {
		ready[i] = domain.OrderEvent{UID: o.UID, Timestamp: now, Label: domain.OrderEventReady}
	}
	if err := c.events.InsertBatch(ctx, ready); err != nil {
		return err
	}
	if err := c.events.InsertBatch(ctx, filtered); err != nil {
		return err
	}

	c.mu.Lock()
	c.current = auction
	c.lastUpdate = now
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.AuctionAgeSeconds.Set(0)
		c.metrics.OrdersInAuction.Set(float64(len(final)))
	}
	return nil
}

func (c *Cache) bump(reason string) {
	if c.metrics != nil {
		c.metrics.OrdersFiltered.WithLabelValues(reason).Inc()
	}
}

func filteredEvent(uid domain.OrderUid, reason string) domain.OrderEvent {
	return domain.OrderEvent{UID: uid, Timestamp: time.Now(), Label: domain.OrderEventFiltered, Reason: reason}
}

// passesBalance implements spec §4.3 step 2: the minimum fillable
// quantity is the full amount for non-partial orders, or
// max(limit_order_price_factor * full_amount, dust_limit) for partials.
func (c *Cache) passesBalance(ctx context.Context, o *domain.Order) (string, bool) {
	available, err := c.balances.Available(ctx, o.Owner, o.SellToken)
	if err != nil {
		return "balance-fetch-error", false
	}

	min := o.FullAmount()
	if o.PartiallyFillable {
		min = minFillable(o.FullAmount(), c.cfg.LimitOrderPriceFactor, c.cfg.DustLimit)
	}
	if available.Cmp(min) < 0 {
		return "insufficient-balance", false
	}
	return "", true
}

func minFillable(full *uint256.Int, factor float64, dust *uint256.Int) *uint256.Int {
	fullFloat := new(big.Float).SetInt(full.ToBig())
	scaled := new(big.Float).Mul(fullFloat, big.NewFloat(factor))
	scaledInt, _ := scaled.Int(nil)
	threshold, overflow := uint256.FromBig(scaledInt)
	if overflow {
		threshold = full
	}
	if threshold.Cmp(dust) < 0 {
		return dust
	}
	return threshold
}

func (c *Cache) passesSignature(ctx context.Context, o *domain.Order, atBlock uint64) (bool, error) {
	switch o.SigningScheme {
	case domain.SigningSchemePreSign, domain.SigningSchemeEip1271:
		if c.sigs == nil {
			return true, nil
		}
		return c.sigs.IsValid(ctx, o, atBlock)
	default:
		return true, nil // eip712/ethsign are verified at order-placement time, upstream of this core
	}
}

func (c *Cache) badTokenBad(ctx context.Context, o *domain.Order) (bool, error) {
	if c.badToken == nil {
		return false, nil
	}
	if bad, err := c.badToken.IsBad(ctx, o.SellToken); err != nil || bad {
		return bad, err
	}
	return c.badToken.IsBad(ctx, o.BuyToken)
}
