// autopilot is the coordination core of the batch-auction exchange: it
// indexes settlement/order events, maintains the solvable-orders cache,
// and drives the auction -> competition -> settlement run-loop (or its
// shadow variant) end to end.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/KRD-Kai/services/internal/chain"
	"github.com/KRD-Kai/services/internal/cleanup"
	"github.com/KRD-Kai/services/internal/config"
	"github.com/KRD-Kai/services/internal/domain"
	"github.com/KRD-Kai/services/internal/driver"
	"github.com/KRD-Kai/services/internal/feepolicy"
	"github.com/KRD-Kai/services/internal/indexer"
	"github.com/KRD-Kai/services/internal/metrics"
	"github.com/KRD-Kai/services/internal/onchain"
	"github.com/KRD-Kai/services/internal/persistence"
	"github.com/KRD-Kai/services/internal/runloop"
	"github.com/KRD-Kai/services/internal/settlement"
	"github.com/KRD-Kai/services/internal/shadow"
	"github.com/KRD-Kai/services/internal/solvableorders"
)

func main() {
	app := &cli.App{
		Name:   "autopilot",
		Usage:  "decentralized batch-auction exchange coordination core",
		Flags:  config.Flags(),
		Before: setupLogger,
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(c *cli.Context) error {
	var w io.Writer = os.Stderr
	useColor := true
	if path := c.String("log-file"); path != "" {
		w = &lumberjack.Logger{Filename: path, MaxSize: 100, MaxBackups: 5, MaxAge: 28}
		useColor = false
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(w, log.LevelInfo, useColor)))
	return nil
}

// run bootstraps every component and blocks until the process receives a
// termination signal. Any failure here is a fatal bootstrap error (spec
// §6 "non-zero = fatal bootstrap failure").
func run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromCLI(c)
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	db, err := persistence.Open(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	chainClient, err := chain.Dial(ctx, cfg.NodeURL, cfg.Chain)
	if err != nil {
		return fmt.Errorf("dial node: %w", err)
	}

	var (
		cursors  = persistence.NewCursorsRepo(db)
		orders   = persistence.NewOrdersRepo(db)
		events   = persistence.NewOrderEventsRepo(db)
		settles  = persistence.NewSettlementsRepo(db)
		link     = persistence.NewAuctionTransactionRepo(db)
		auctions = persistence.NewAuctionsRepo(db)
		comps    = persistence.NewSolverCompetitionsRepo(db)
	)

	indexers := buildIndexers(cfg, chainClient, cursors, events, settles, link, m)

	observer := settlement.New(chainClient, settles, link, m, settlement.DefaultConfig())

	badTokens, err := solvableorders.NewBadTokenFilter(nil, nil, onchain.NoopBadTokenDetector{}, time.Hour, 16)
	if err != nil {
		return fmt.Errorf("build bad-token filter: %w", err)
	}
	cache := solvableorders.New(
		orders, events, auctions,
		onchain.NewBalanceFetcher(chainClient, cfg.SettlementContract),
		onchain.NewPriceEstimator(chainClient, cfg.PriceOracle),
		onchain.NewSignatureValidator(chainClient, cfg.SettlementContract),
		badTokens,
		m,
		cfg.BannedUsers,
		cfg.Cache,
	)

	attacher := feepolicy.New(feepolicy.Config{
		Market: []domain.FeePolicy{{Kind: domain.FeePolicySurplus, Factor: 0.5, MaxVolumeFactor: 0.01}},
		Limit:  []domain.FeePolicy{{Kind: domain.FeePolicyPriceImprovement, Factor: 0.5, MaxVolumeFactor: 0.01}},
	})

	drivers := make([]domain.Driver, len(cfg.Drivers))
	for i, d := range cfg.Drivers {
		drivers[i] = domain.Driver{Name: d.Name, URL: d.URL}
	}
	newClient := func(d domain.Driver) *driver.Client {
		return driver.New(d, &http.Client{}, cfg.RunLoop.SolveDeadline)
	}

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() { defer wg.Done(); fn() }()
	}

	spawn(func() { serveMetrics(ctx, cfg.MetricsAddr, reg, cache) })
	for _, idx := range indexers {
		idx := idx
		spawn(func() { driveIndexer(ctx, idx, chainClient) })
	}
	spawn(func() { driveSettlementObserver(ctx, observer, chainClient) })
	spawn(func() {
		cache.Run(ctx, func(ctx context.Context) (uint64, error) {
			head, err := chainClient.LatestBlock(ctx)
			if err != nil {
				return 0, err
			}
			return head.Number.Uint64(), nil
		})
	})
	spawn(func() { cleanup.New(events, cfg.Cleanup).Run(ctx) })

	if cfg.ShadowUpstreamURL != "" {
		loop := shadow.New(shadow.NewFetcher(cfg.ShadowUpstreamURL, &http.Client{}), drivers, newClient, m, cfg.Shadow)
		spawn(func() { loop.Run(ctx) })
	} else {
		rl, err := runloop.New(cache, attacher, drivers, newClient, auctions, comps, events, link, m, cfg.RunLoop)
		if err != nil {
			return fmt.Errorf("build run-loop: %w", err)
		}
		spawn(func() { rl.Run(ctx) })
	}

	<-ctx.Done()
	log.Info("autopilot: shutdown signal received, waiting for tasks to drain")
	wg.Wait()
	return nil
}

func buildIndexers(
	cfg config.Config,
	client chain.Client,
	cursors *persistence.CursorsRepo,
	events *persistence.OrderEventsRepo,
	settles *persistence.SettlementsRepo,
	link *persistence.AuctionTransactionRepo,
	m *metrics.Metrics,
) []*indexer.Indexer {
	sources := []indexer.Source{settlementSource(cfg.SettlementContract)}
	if cfg.EthflowContract != nil {
		sources = append(sources,
			ethflowPlacementSource(*cfg.EthflowContract),
			ethflowRefundSource(*cfg.EthflowContract),
		)
	}
	out := make([]*indexer.Indexer, len(sources))
	for i, s := range sources {
		out[i] = indexer.New(s, client, cursors, events, settles, link, m, cfg.Indexer)
	}
	return out
}

func driveIndexer(ctx context.Context, idx *indexer.Indexer, client chain.Client) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			head, err := client.LatestBlock(ctx)
			if err != nil {
				log.Warn("autopilot: failed to read latest block for indexer", "err", err)
				continue
			}
			if err := idx.RunMaintenance(ctx, head); err != nil {
				log.Error("autopilot: indexer maintenance failed", "err", err)
			}
		}
	}
}

func driveSettlementObserver(ctx context.Context, o *settlement.Observer, client chain.Client) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			head, err := client.LatestBlock(ctx)
			if err != nil {
				log.Warn("autopilot: failed to read latest block for settlement observer", "err", err)
				continue
			}
			if err := o.RunMaintenance(ctx, head.Number.Uint64()); err != nil {
				log.Error("autopilot: settlement observer maintenance failed", "err", err)
			}
		}
	}
}

// livenessProbe matches the subset of *solvableorders.Cache the /healthz
// endpoint depends on (spec §7: "liveness: age of last auction ≤
// max_auction_age").
type livenessProbe interface {
	Healthy(now time.Time) bool
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, probe livenessProbe) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !probe.Healthy(time.Now()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("autopilot: metrics server failed", "err", err)
	}
}
