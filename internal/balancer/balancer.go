package balancer

import (
	"sync"

	"bulkgofer/internal/upstream"
)

// WeightedRoundRobin spreads dispatches across upstreams in proportion to
// their weights. It uses the smooth variant, so a 3:1 pair yields a,a,b,a
// instead of bursts of the heavier upstream.
type WeightedRoundRobin struct {
	provider UpstreamProvider

	mu      sync.Mutex
	current map[string]int // running score per upstream name
}

// NewWeightedRoundRobin creates a new WeightedRoundRobin balancer
func NewWeightedRoundRobin(provider UpstreamProvider) *WeightedRoundRobin {
	return &WeightedRoundRobin{
		provider: provider,
		current:  make(map[string]int),
	}
}

// Next returns the next upstream, or nil when none is available.
// Main upstreams are preferred over fallback.
func (wrr *WeightedRoundRobin) Next() *upstream.Upstream {
	candidates := candidates(wrr.provider)
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return candidates[0]
	}

	wrr.mu.Lock()
	defer wrr.mu.Unlock()

	var best *upstream.Upstream
	total := 0
	for _, u := range candidates {
		w := u.Weight()
		total += w
		wrr.current[u.Name()] += w
		if best == nil || wrr.current[u.Name()] > wrr.current[best.Name()] {
			best = u
		}
	}

	wrr.current[best.Name()] -= total
	return best
}

// RoundRobin cycles through upstreams ignoring weights
type RoundRobin struct {
	provider UpstreamProvider

	mu   sync.Mutex
	next int
}

// NewRoundRobin creates a new round-robin balancer
func NewRoundRobin(provider UpstreamProvider) *RoundRobin {
	return &RoundRobin{provider: provider}
}

// Next returns the next upstream in turn
func (rr *RoundRobin) Next() *upstream.Upstream {
	candidates := candidates(rr.provider)
	if len(candidates) == 0 {
		return nil
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()

	u := candidates[rr.next%len(candidates)]
	rr.next++
	return u
}

// candidates returns the usable main upstreams, or the fallback ones when no main is usable
func candidates(provider UpstreamProvider) []*upstream.Upstream {
	if main := provider.GetAvailableMain(); len(main) > 0 {
		return main
	}
	return provider.GetAvailableFallback()
}
