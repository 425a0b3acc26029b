// Package settlement implements C2: it enriches settlement logs with the
// submitting transaction and associates each to an auction by decoding the
// auction id tagged onto the winning solution's calldata (spec §4.2).
package settlement

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/KRD-Kai/services/internal/chain"
	"github.com/KRD-Kai/services/internal/domain"
	"github.com/KRD-Kai/services/internal/metrics"
	"github.com/KRD-Kai/services/internal/persistence"
)

// Config bounds how long an unlinked settlement is retried before it is
// abandoned (spec §4.2: "a configurable number of retries").
type Config struct {
	ReorgSafety uint64
	MaxRetries  int
	BatchSize   int
}

func DefaultConfig() Config {
	return Config{ReorgSafety: 64, MaxRetries: 10, BatchSize: 200}
}

type Observer struct {
	client      chain.Client
	settlements *persistence.SettlementsRepo
	link        *persistence.AuctionTransactionRepo
	metrics     *metrics.Metrics
	cfg         Config

	attempts map[settlementKey]int
}

type settlementKey struct {
	block uint64
	log   uint64
}

func New(client chain.Client, settlements *persistence.SettlementsRepo, link *persistence.AuctionTransactionRepo, m *metrics.Metrics, cfg Config) *Observer {
	return &Observer{
		client:      client,
		settlements: settlements,
		link:        link,
		metrics:     m,
		cfg:         cfg,
		attempts:    make(map[settlementKey]int),
	}
}

// RunMaintenance enriches every settlement still missing tx info and then
// attempts to link it to an auction (spec §4.2). The process calls it on
// a fixed ticker with the current head block.
func (o *Observer) RunMaintenance(ctx context.Context, currentBlock uint64) error {
	pending, err := o.settlements.Unenriched(ctx, o.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("load unenriched settlements: %w", err)
	}
	for _, ev := range pending {
		if err := o.enrichAndLink(ctx, ev, currentBlock); err != nil {
			log.Error("settlement observer failed on one log, continuing", "block", ev.BlockNumber, "log", ev.LogIndex, "err", err)
		}
	}

	// Rows that were enriched but never linked (the auction-id decode or
	// the link write failed after SetTxInfo succeeded) never come back
	// from Unenriched, so they need their own pass to ever reach
	// giveUpOrRetry's abandonment path.
	stuck, err := o.settlements.EnrichedUnlinked(ctx, o.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("load enriched-unlinked settlements: %w", err)
	}
	for _, ev := range stuck {
		if err := o.enrichAndLink(ctx, ev, currentBlock); err != nil {
			log.Error("settlement observer failed to link enriched log, continuing", "block", ev.BlockNumber, "log", ev.LogIndex, "err", err)
		}
	}
	return nil
}

func (o *Observer) enrichAndLink(ctx context.Context, ev domain.SettlementEvent, currentBlock uint64) error {
	key := settlementKey{block: ev.BlockNumber, log: ev.LogIndex}

	tx, _, err := o.client.TransactionByHash(ctx, common.Hash(ev.TxHash))
	if err != nil {
		return o.giveUpOrRetry(key, ev, currentBlock, fmt.Errorf("fetch tx %x: %w", ev.TxHash, err))
	}

	from, nonce, err := senderAndNonce(tx)
	if err != nil {
		return o.giveUpOrRetry(key, ev, currentBlock, err)
	}
	if err := o.settlements.SetTxInfo(ctx, ev.BlockNumber, ev.LogIndex, from, nonce); err != nil {
		return fmt.Errorf("set tx info: %w", err)
	}

	auctionID, ok := decodeAuctionIDTag(tx.Data())
	if !ok {
		return o.giveUpOrRetry(key, ev, currentBlock, fmt.Errorf("calldata too short for auction-id tag"))
	}

	if err := o.link.Link(ctx, ev.BlockNumber, ev.LogIndex, auctionID); err != nil {
		return fmt.Errorf("link settlement to auction %d: %w", auctionID, err)
	}
	delete(o.attempts, key)
	return nil
}

// giveUpOrRetry implements the "reorg_safety + retries" abandonment policy:
// once a settlement is older than ReorgSafety blocks and has been retried
// MaxRetries times without a link, emit the warning metric and stop
// retrying it (spec §4.2). Everything before that point is a transient
// failure the caller simply logs and revisits next pass.
func (o *Observer) giveUpOrRetry(key settlementKey, ev domain.SettlementEvent, currentBlock uint64, cause error) error {
	o.attempts[key]++
	old := currentBlock > ev.BlockNumber+o.cfg.ReorgSafety
	if old && o.attempts[key] >= o.cfg.MaxRetries {
		if o.metrics != nil {
			o.metrics.SettlementsUnlinked.Inc()
		}
		delete(o.attempts, key)
		log.Warn("settlement permanently unlinked", "block", ev.BlockNumber, "log", ev.LogIndex, "err", cause)
		return nil
	}
	return cause
}

// senderAndNonce recovers the submitting EOA from the transaction's
// signature, without needing the original sender field (unavailable on
// a transaction fetched by hash alone).
func senderAndNonce(tx *types.Transaction) ([20]byte, uint64, error) {
	signer := types.LatestSignerForChainID(tx.ChainId())
	from, err := types.Sender(signer, tx)
	if err != nil {
		return [20]byte{}, 0, fmt.Errorf("recover sender: %w", err)
	}
	return [20]byte(from), tx.Nonce(), nil
}

// decodeAuctionIDTag reads the auction id from the last 8 bytes of
// calldata, big-endian (spec §4.2, §9 "Calldata-tagged correlation").
func decodeAuctionIDTag(calldata []byte) (domain.AuctionID, bool) {
	if len(calldata) < 8 {
		return 0, false
	}
	tag := calldata[len(calldata)-8:]
	return domain.AuctionID(binary.BigEndian.Uint64(tag)), true
}
