// Package metrics registers the per-round and per-component counters
// described in spec §7: wins, results{driver,result}, performance_rewards,
// plus the indexer/cache health signals referenced in §4 and §9. Serving
// them over HTTP is an external concern (spec §1); this package only
// registers collectors against a prometheus.Registerer handed to it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every collector this core registers.
type Metrics struct {
	Wins               prometheus.Counter
	Results            *prometheus.CounterVec
	PerformanceRewards prometheus.Histogram

	IndexerReorgsTotal   *prometheus.CounterVec
	IndexerLagBlocks     *prometheus.GaugeVec
	SettlementsUnlinked  prometheus.Gauge

	AuctionAgeSeconds prometheus.Gauge
	OrdersInAuction   prometheus.Gauge
	OrdersFiltered    *prometheus.CounterVec

	SolverCompetitionSize prometheus.Histogram

	ShadowRoundsTotal  *prometheus.CounterVec
	ShadowParticipants prometheus.Histogram
}

// New constructs and registers every collector against reg. Passing
// prometheus.NewRegistry() in tests keeps registrations isolated between
// test cases.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Wins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autopilot",
			Name:      "wins_total",
			Help:      "Number of rounds that selected a winner, counted before settlement is attempted.",
		}),
		Results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autopilot",
			Name:      "results_total",
			Help:      "Per-driver, per-result-kind outcome count for a round.",
		}, []string{"driver", "result"}),
		PerformanceRewards: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "autopilot",
			Name:      "performance_rewards",
			Help:      "Winner score minus runner-up score for each round with a winner.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}),
		IndexerReorgsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autopilot",
			Subsystem: "indexer",
			Name:      "reorgs_total",
			Help:      "Detected chain reorgs per event source.",
		}, []string{"source"}),
		IndexerLagBlocks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "autopilot",
			Subsystem: "indexer",
			Name:      "lag_blocks",
			Help:      "Blocks between the chain head and the last indexed block.",
		}, []string{"source"}),
		SettlementsUnlinked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autopilot",
			Subsystem: "settlement_observer",
			Name:      "unlinked_total",
			Help:      "Settlements older than reorg_safety that are still unlinked to an auction.",
		}),
		AuctionAgeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autopilot",
			Subsystem: "cache",
			Name:      "auction_age_seconds",
			Help:      "Seconds since the solvable-orders cache last rebuilt its snapshot.",
		}),
		OrdersInAuction: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autopilot",
			Subsystem: "cache",
			Name:      "orders_in_auction",
			Help:      "Number of orders in the most recently built auction.",
		}),
		OrdersFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autopilot",
			Subsystem: "cache",
			Name:      "orders_filtered_total",
			Help:      "Orders dropped while building a snapshot, by reason.",
		}, []string{"reason"}),
		SolverCompetitionSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "autopilot",
			Subsystem: "runloop",
			Name:      "participants",
			Help:      "Number of participants recorded per solver competition.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		ShadowRoundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autopilot",
			Subsystem: "shadow",
			Name:      "rounds_total",
			Help:      "Shadow run-loop rounds processed, by driver and result kind.",
		}, []string{"driver", "result"}),
		ShadowParticipants: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "autopilot",
			Subsystem: "shadow",
			Name:      "participants",
			Help:      "Number of participants recorded per shadow competition.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
	}
	reg.MustRegister(
		m.Wins, m.Results, m.PerformanceRewards,
		m.IndexerReorgsTotal, m.IndexerLagBlocks, m.SettlementsUnlinked,
		m.AuctionAgeSeconds, m.OrdersInAuction, m.OrdersFiltered,
		m.SolverCompetitionSize, m.ShadowRoundsTotal, m.ShadowParticipants,
	)
	return m
}
