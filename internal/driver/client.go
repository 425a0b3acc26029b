// Package driver implements C5: a typed solve/reveal/settle HTTP client
// per configured driver, with per-call deadline enforcement (spec §4.5).
package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/KRD-Kai/services/internal/domain"
)

// Client talks to one driver's /solve, /reveal, /settle endpoints.
type Client struct {
	driver        domain.Driver
	httpClient    *http.Client
	solverTimeout time.Duration
}

func New(d domain.Driver, httpClient *http.Client, solverTimeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{driver: d, httpClient: httpClient, solverTimeout: solverTimeout}
}

// callDeadline enforces "min(remaining_round_budget, configured_solver_timeout)"
// (spec §4.5).
func (c *Client) callDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < c.solverTimeout {
			return context.WithTimeout(ctx, remaining)
		}
	}
	return context.WithTimeout(ctx, c.solverTimeout)
}

// Solve requests solutions for auction, returning the parsed best
// candidates (spec §4.5, §6 /solve). scoreCap is the round's cap; trusted
// marks tokens that do not require a bad-token consultation by drivers.
func (c *Client) Solve(ctx context.Context, auction *domain.Auction, deadline time.Time, scoreCap *uint256.Int, trusted map[common.Address]bool) ([]domain.Solution, error) {
	ctx, cancel := c.callDeadline(ctx)
	defer cancel()

	req := solveRequest{
		ID:       fmt.Sprintf("%d", uint64(auction.ID)),
		Tokens:   toWireTokens(auction, trusted),
		Orders:   make([]wireOrder, len(auction.Orders)),
		Deadline: deadline.Format(time.RFC3339),
		ScoreCap: dec(scoreCap),
	}
	for i, ao := range auction.Orders {
		req.Orders[i] = toWireOrder(ao)
	}

	var resp solveResponse
	if err := c.post(ctx, "/solve", req, &resp); err != nil {
		return nil, err
	}

	solutions := make([]domain.Solution, 0, len(resp.Solutions))
	for _, s := range resp.Solutions {
		score, err := uint256.FromDecimal(s.Score)
		if err != nil {
			continue // malformed score from a misbehaving driver: skip, not fatal
		}
		id, err := s.SolutionID.Int64()
		if err != nil {
			continue
		}
		solutions = append(solutions, domain.Solution{
			ID:                domain.SolutionID(id),
			Score:             score,
			SubmissionAddress: common.HexToAddress(s.SubmissionAddress),
			TradedOrders:      toOrderUIDs(s.Orders),
		})
	}
	if len(solutions) == 0 {
		return nil, domain.ErrNoSolutions
	}
	return solutions, nil
}

// Reveal asks the driver for the winning solution's calldata (spec §6
// /reveal).
func (c *Client) Reveal(ctx context.Context, id domain.SolutionID) (*domain.Calldata, error) {
	ctx, cancel := c.callDeadline(ctx)
	defer cancel()

	req := revealRequest{SolutionID: json.Number(fmt.Sprintf("%d", id))}
	var resp revealResponse
	if err := c.post(ctx, "/reveal", req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReveal, err)
	}
	internalized, err := decodeHex(resp.Calldata.Internalized)
	if err != nil {
		return nil, fmt.Errorf("%w: internalized calldata: %v", domain.ErrReveal, err)
	}
	uninternalized, err := decodeHex(resp.Calldata.Uninternalized)
	if err != nil {
		return nil, fmt.Errorf("%w: uninternalized calldata: %v", domain.ErrReveal, err)
	}
	return &domain.Calldata{Internalized: internalized, Uninternalized: uninternalized}, nil
}

// Settle asks the driver to submit the winning solution on-chain (spec §6
// /settle).
func (c *Client) Settle(ctx context.Context, id domain.SolutionID, maxWait time.Duration) (common.Hash, *domain.Calldata, error) {
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	req := settleRequest{SolutionID: json.Number(fmt.Sprintf("%d", id))}
	var resp settleResponse
	if err := c.post(ctx, "/settle", req, &resp); err != nil {
		return common.Hash{}, nil, fmt.Errorf("%w: %v", domain.ErrSettle, err)
	}
	internalized, err := decodeHex(resp.Calldata.Internalized)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("%w: calldata: %v", domain.ErrSettle, err)
	}
	uninternalized, err := decodeHex(resp.Calldata.Uninternalized)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("%w: calldata: %v", domain.ErrSettle, err)
	}
	return common.HexToHash(resp.TxHash), &domain.Calldata{Internalized: internalized, Uninternalized: uninternalized}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.driver.URL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return domain.ErrTimeout
		}
		return fmt.Errorf("driver %s %s: %w", c.driver.Name, path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read driver response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("driver %s %s: status %d: %s", c.driver.Name, path, httpResp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hexutil.Decode(s)
}
