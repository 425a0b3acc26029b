package solvableorders

import (
	"context"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// cachingBalanceFetcher wraps a BalanceFetcher with a fixed-size byte
// cache keyed on owner||token, avoiding a repeat fetch for every order
// sharing an owner+token pair within the same update pass. The cache is
// reset at the start of every update() so a stale balance never survives
// past one rebuild (spec §4.3: "consult the cached balance fetcher").
type cachingBalanceFetcher struct {
	inner BalanceFetcher
	cache *fastcache.Cache
}

func newCachingBalanceFetcher(inner BalanceFetcher, maxBytes int) *cachingBalanceFetcher {
	return &cachingBalanceFetcher{
		inner: inner,
		cache: fastcache.New(maxBytes),
	}
}

func (c *cachingBalanceFetcher) reset() {
	c.cache.Reset()
}

func (c *cachingBalanceFetcher) Available(ctx context.Context, owner, token common.Address) (*uint256.Int, error) {
	key := balanceKey(owner, token)
	if raw, ok := c.cache.HasGet(nil, key); ok {
		return new(uint256.Int).SetBytes(raw), nil
	}

	amount, err := c.inner.Available(ctx, owner, token)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, amount.Bytes())
	return amount, nil
}

func balanceKey(owner, token common.Address) []byte {
	key := make([]byte, 0, 40)
	key = append(key, owner[:]...)
	key = append(key, token[:]...)
	return key
}
