// Package feepolicy implements C4: it attaches a per-order list of
// protocol-fee policies to an auction from static configuration,
// class-dependent (spec §4.4). The policies themselves are computed by
// the driver/solver side; this package only decides which ones apply.
package feepolicy

import "github.com/KRD-Kai/services/internal/domain"

// Config is the static, round-independent fee-policy configuration: one
// policy list per order class that can receive fees. Liquidity orders
// never receive a policy (spec §4.4: market/limit subsets only).
type Config struct {
	Market []domain.FeePolicy
	Limit  []domain.FeePolicy
}

// Attacher attaches Config's policies to every order in an auction,
// following the class -> subset mapping fixed in spec §4.4. It performs
// no renegotiation: the same Config applies for the whole round.
type Attacher struct {
	cfg Config
}

func New(cfg Config) *Attacher { return &Attacher{cfg: cfg} }

// Attach mutates auction.Orders in place, setting FeePolicies per order's
// class. Called once per round, after the cache snapshot is taken and
// before the solve request is built (spec §4.6 step 3/5 boundary).
func (a *Attacher) Attach(auction *domain.Auction) {
	for i := range auction.Orders {
		auction.Orders[i].FeePolicies = a.policiesFor(auction.Orders[i].Order.Class)
	}
}

func (a *Attacher) policiesFor(class domain.OrderClass) []domain.FeePolicy {
	switch class {
	case domain.OrderClassMarket:
		return clone(a.cfg.Market)
	case domain.OrderClassLimit:
		return clone(a.cfg.Limit)
	default: // liquidity: no fee policy attached
		return nil
	}
}

func clone(in []domain.FeePolicy) []domain.FeePolicy {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.FeePolicy, len(in))
	copy(out, in)
	return out
}
