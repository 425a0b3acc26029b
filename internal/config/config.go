// Package config declares the process's CLI surface (spec §6) and
// resolves it into the typed config each component needs, with an
// optional file/env overlay via viper layered under explicit flags.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/KRD-Kai/services/internal/cleanup"
	"github.com/KRD-Kai/services/internal/chain"
	"github.com/KRD-Kai/services/internal/indexer"
	"github.com/KRD-Kai/services/internal/runloop"
	"github.com/KRD-Kai/services/internal/shadow"
	"github.com/KRD-Kai/services/internal/solvableorders"
)

const (
	flagConfigFile                   = "config"
	flagNodeURL                      = "node-url"
	flagDBURL                        = "db-url"
	flagMetricsAddr                  = "metrics-addr"
	flagLogFile                      = "log-file"
	flagSettlementContract           = "settlement-contract"
	flagEthflowContract              = "ethflow-contract"
	flagPriceOracle                  = "price-oracle"
	flagDrivers                      = "drivers"
	flagSolveDeadline                = "solve-deadline"
	flagAuctionUpdateInterval        = "auction-update-interval"
	flagMaxAuctionAge                = "max-auction-age"
	flagScoreCap                     = "score-cap"
	flagAdditionalDeadlineForRewards = "additional-deadline-for-rewards"
	flagSubmissionDeadline           = "submission-deadline"
	flagMaxSettlementTransactionWait = "max-settlement-transaction-wait"
	flagCleanupInterval              = "cleanup-interval"
	flagCleanupThreshold             = "cleanup-threshold"
	flagShadow                       = "shadow"
	flagBannedUsers                  = "banned-users"
)

// Flags is the process's full CLI surface (spec §6 "CLI surface").
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagConfigFile, Usage: "optional YAML/env config file overlaid under explicit flags"},
		&cli.StringFlag{Name: flagNodeURL, Usage: "chain node JSON-RPC endpoint", Required: true},
		&cli.StringFlag{Name: flagDBURL, Usage: "Postgres DSN", Required: true},
		&cli.StringFlag{Name: flagMetricsAddr, Value: ":9090", Usage: "address to serve Prometheus metrics on"},
		&cli.StringFlag{Name: flagLogFile, Usage: "rotate logs to this file instead of stderr"},
		&cli.StringFlag{Name: flagSettlementContract, Required: true, Usage: "settlement contract address"},
		&cli.StringFlag{Name: flagEthflowContract, Usage: "ethflow contract address; enables ethflow order-placement/refund indexing"},
		&cli.StringFlag{Name: flagPriceOracle, Usage: "native-price oracle contract address"},
		&cli.StringSliceFlag{Name: flagDrivers, Usage: "name|url, repeatable", Required: true},
		&cli.DurationFlag{Name: flagSolveDeadline, Value: 15 * time.Second},
		&cli.DurationFlag{Name: flagAuctionUpdateInterval, Value: 2 * time.Second},
		&cli.DurationFlag{Name: flagMaxAuctionAge, Value: time.Minute},
		&cli.StringFlag{Name: flagScoreCap, Value: "0", Usage: "U256 decimal"},
		&cli.DurationFlag{Name: flagAdditionalDeadlineForRewards, Value: 5 * time.Second},
		&cli.IntFlag{Name: flagSubmissionDeadline, Value: 30, Usage: "seconds"},
		&cli.DurationFlag{Name: flagMaxSettlementTransactionWait, Value: 2 * time.Minute},
		&cli.DurationFlag{Name: flagCleanupInterval, Value: time.Hour},
		&cli.DurationFlag{Name: flagCleanupThreshold, Value: 30 * 24 * time.Hour},
		&cli.StringFlag{Name: flagShadow, Usage: "upstream auction URL; activates the shadow run-loop instead of C6"},
		&cli.StringSliceFlag{Name: flagBannedUsers, Usage: "owner address, repeatable"},
	}
}

// Driver is one --drivers name|url entry.
type Driver struct {
	Name string
	URL  string
}

// Config is the fully resolved process configuration.
type Config struct {
	NodeURL             string
	DBURL               string
	MetricsAddr         string
	LogFile             string
	SettlementContract  common.Address
	EthflowContract      *common.Address
	PriceOracle         common.Address
	Drivers             []Driver
	ShadowUpstreamURL   string
	BannedUsers         []common.Address

	Chain     chain.Config
	Indexer   indexer.Config
	Cache     solvableorders.Config
	RunLoop   runloop.Config
	Shadow    shadow.Config
	Cleanup   cleanup.Config
}

// FromCLI resolves Config from cli flags, with an optional viper-backed
// file/env overlay applied first (flags win on conflict, matching
// urfave/cli's own precedence for anything the file doesn't set).
func FromCLI(c *cli.Context) (Config, error) {
	if path := c.String(flagConfigFile); path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetEnvPrefix("AUTOPILOT")
		v.AutomaticEnv()
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		for _, key := range v.AllKeys() {
			if !c.IsSet(key) {
				if err := c.Set(key, fmt.Sprintf("%v", v.Get(key))); err != nil {
					return Config{}, fmt.Errorf("apply config key %q: %w", key, err)
				}
			}
		}
	}

	drivers, err := parseDrivers(c.StringSlice(flagDrivers))
	if err != nil {
		return Config{}, err
	}

	scoreCap, err := uint256.FromDecimal(c.String(flagScoreCap))
	if err != nil {
		return Config{}, fmt.Errorf("--%s: %w", flagScoreCap, err)
	}

	var banned []common.Address
	for _, s := range c.StringSlice(flagBannedUsers) {
		banned = append(banned, common.HexToAddress(s))
	}

	var ethflow *common.Address
	if s := c.String(flagEthflowContract); s != "" {
		addr := common.HexToAddress(s)
		ethflow = &addr
	}

	cfg := Config{
		NodeURL:            c.String(flagNodeURL),
		DBURL:              c.String(flagDBURL),
		MetricsAddr:        c.String(flagMetricsAddr),
		LogFile:            c.String(flagLogFile),
		SettlementContract: common.HexToAddress(c.String(flagSettlementContract)),
		EthflowContract:    ethflow,
		PriceOracle:        common.HexToAddress(c.String(flagPriceOracle)),
		Drivers:            drivers,
		ShadowUpstreamURL:  c.String(flagShadow),
		BannedUsers:        banned,

		Chain:   chain.DefaultConfig(),
		Indexer: indexer.DefaultConfig(),
		Cache:   solvableorders.DefaultConfig(),
		Cleanup: cleanup.Config{
			Interval:  c.Duration(flagCleanupInterval),
			Threshold: c.Duration(flagCleanupThreshold),
		},
		RunLoop: runloop.Config{
			SolveDeadline:                c.Duration(flagSolveDeadline),
			AdditionalDeadlineForRewards: c.Duration(flagAdditionalDeadlineForRewards),
			SubmissionDeadline:           time.Duration(c.Int(flagSubmissionDeadline)) * time.Second,
			MaxSettlementTransactionWait: c.Duration(flagMaxSettlementTransactionWait),
			ScoreCap:                     scoreCap,
			PollInterval:                 200 * time.Millisecond,
			TrustedTokens:                map[common.Address]bool{},
		},
		Shadow: shadow.Config{
			SolveDeadline:      c.Duration(flagSolveDeadline),
			SubmissionDeadline: time.Duration(c.Int(flagSubmissionDeadline)) * time.Second,
			PollInterval:       200 * time.Millisecond,
			ScoreCap:           scoreCap,
			TrustedTokens:      map[common.Address]bool{},
		},
	}
	cfg.Cache.UpdateInterval = c.Duration(flagAuctionUpdateInterval)
	cfg.Cache.MaxAuctionAge = c.Duration(flagMaxAuctionAge)
	return cfg, nil
}

func parseDrivers(raw []string) ([]Driver, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("--%s: at least one driver is required", flagDrivers)
	}
	out := make([]Driver, 0, len(raw))
	for _, s := range raw {
		name, url, ok := splitOnce(s, '|')
		if !ok {
			return nil, fmt.Errorf("--%s: malformed entry %q, want name|url", flagDrivers, s)
		}
		out = append(out, Driver{Name: name, URL: url})
	}
	return out, nil
}

func splitOnce(s string, sep byte) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
