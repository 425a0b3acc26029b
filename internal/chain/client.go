// Package chain wraps the handful of node operations the indexer and the
// solvable-orders cache need: latest_block, get_logs and a current-block
// subscription (spec §4.1), plus the raw eth_call used for EIP-1271
// signature checks. It is the only place ethclient.Client is imported.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/time/rate"
)

// Client is the subset of node operations the autopilot core depends on.
// Generated mocks (go.uber.org/mock) implement this interface in tests.
//
//go:generate go run go.uber.org/mock/mockgen -destination mockchain/client_mock.go -package mockchain github.com/KRD-Kai/services/internal/chain Client
type Client interface {
	LatestBlock(ctx context.Context) (*types.Header, error)
	HeaderByNumber(ctx context.Context, number uint64) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *uint64) ([]byte, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

// client is the production Client backed by ethclient.Client, with a
// token-bucket limiter and bounded retry around transient RPC errors
// (spec §7 IndexerTransient: "exponential backoff retry").
type client struct {
	eth     *ethclient.Client
	limiter *rate.Limiter
	retries int
}

// Config controls the rate limit and retry budget applied to every call.
type Config struct {
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
}

func DefaultConfig() Config {
	return Config{RequestsPerSecond: 20, Burst: 10, MaxRetries: 5}
}

// Dial connects to the node's JSON-RPC endpoint (http(s):// or ws(s)://).
// A ws(s):// URL is required for SubscribeNewHead to work.
func Dial(ctx context.Context, rawurl string, cfg Config) (Client, error) {
	eth, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("dial node %q: %w", rawurl, err)
	}
	return &client{
		eth:     eth,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		retries: cfg.MaxRetries,
	}, nil
}

func (c *client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt <= c.retries; attempt++ {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return werr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("chain rpc call failed, retrying", "op", op, "attempt", attempt, "err", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return fmt.Errorf("%s: %w (after %d retries)", op, err, c.retries)
}

func (c *client) LatestBlock(ctx context.Context) (*types.Header, error) {
	var head *types.Header
	err := c.withRetry(ctx, "latest_block", func(ctx context.Context) (err error) {
		head, err = c.eth.HeaderByNumber(ctx, nil)
		return err
	})
	return head, err
}

func (c *client) HeaderByNumber(ctx context.Context, number uint64) (*types.Header, error) {
	var head *types.Header
	err := c.withRetry(ctx, "header_by_number", func(ctx context.Context) (err error) {
		head, err = c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		return err
	})
	return head, err
}

func (c *client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.withRetry(ctx, "get_logs", func(ctx context.Context) (err error) {
		logs, err = c.eth.FilterLogs(ctx, q)
		return err
	})
	return logs, err
}

func (c *client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	return c.eth.SubscribeNewHead(ctx, ch)
}

func (c *client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *uint64) ([]byte, error) {
	var out []byte
	err := c.withRetry(ctx, "eth_call", func(ctx context.Context) (err error) {
		var bn *big.Int
		if blockNumber != nil {
			bn = new(big.Int).SetUint64(*blockNumber)
		}
		out, err = c.eth.CallContract(ctx, msg, bn)
		return err
	})
	return out, err
}

func (c *client) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	var (
		tx        *types.Transaction
		isPending bool
	)
	err := c.withRetry(ctx, "transaction_by_hash", func(ctx context.Context) (err error) {
		tx, isPending, err = c.eth.TransactionByHash(ctx, hash)
		return err
	})
	return tx, isPending, err
}
