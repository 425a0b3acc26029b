package solvableorders

import (
	"context"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/bloomfilter/v2"
)

// BadTokenFilter applies the allow-list/deny-list/detector combo of spec
// §4.3 step 4: explicit allow always passes, explicit deny always fails,
// otherwise an optional detector is consulted and its verdict cached with
// a TTL. A bloom filter sits in front of the deny-list set lookup so the
// overwhelmingly common non-denied token never pays for a set hit.
type BadTokenFilter struct {
	allow mapset.Set[common.Address]
	deny  mapset.Set[common.Address]

	denyBloom *bloomfilter.Filter

	detector BadTokenDetector
	ttl      time.Duration

	mu     sync.Mutex
	cached map[common.Address]verdict
}

type verdict struct {
	bad    bool
	expiry time.Time
}

// NewBadTokenFilter builds a filter from static allow/deny lists plus an
// optional detector for everything else. denyEstimate sizes the bloom
// filter; it should be comfortably above the expected deny-list size.
func NewBadTokenFilter(allow, deny []common.Address, detector BadTokenDetector, ttl time.Duration, denyEstimate uint64) (*BadTokenFilter, error) {
	denySet := mapset.NewSet(deny...)

	// false positive rate 1%; bloomfilter/v2 sizes m,k from (n, p).
	bf, err := bloomfilter.NewOptimal(max64(denyEstimate, 16), 0.01)
	if err != nil {
		return nil, err
	}
	for _, addr := range deny {
		bf.Add(addrHash(addr))
	}

	return &BadTokenFilter{
		allow:     mapset.NewSet(allow...),
		deny:      denySet,
		denyBloom: bf,
		detector:  detector,
		ttl:       ttl,
		cached:    make(map[common.Address]verdict),
	}, nil
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// bloomKey adapts a plain 64-bit hash to bloomfilter.Filter's Hashable
// interface (a single Sum64() method).
type bloomKey uint64

func (k bloomKey) Sum64() uint64 { return uint64(k) }

func addrHash(a common.Address) bloomKey {
	return bloomKey(fnvHash(a[:]))
}

// fnvHash is a cheap, deterministic 64-bit hash of an address for the
// bloom filter key; cryptographic strength is unnecessary here since the
// bloom filter is only ever a pre-filter in front of an authoritative set.
func fnvHash(b []byte) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= prime64
	}
	return h
}

// IsBad reports whether token must be excluded from the auction.
func (f *BadTokenFilter) IsBad(ctx context.Context, token common.Address) (bool, error) {
	if f.allow.Contains(token) {
		return false, nil
	}
	if f.denyBloom.Contains(addrHash(token)) && f.deny.Contains(token) {
		return true, nil
	}
	if f.detector == nil {
		return false, nil
	}

	f.mu.Lock()
	if v, ok := f.cached[token]; ok && time.Now().Before(v.expiry) {
		f.mu.Unlock()
		return v.bad, nil
	}
	f.mu.Unlock()

	bad, err := f.detector.IsBad(ctx, token)
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	f.cached[token] = verdict{bad: bad, expiry: time.Now().Add(f.ttl)}
	f.mu.Unlock()
	return bad, nil
}
