package balancer

import (
	"bulkgofer/internal/config"
	"bulkgofer/internal/upstream"
)

// Selector is the interface for selecting an upstream
type Selector = upstream.Selector

// UpstreamProvider provides access to upstreams
type UpstreamProvider interface {
	// GetAvailableMain returns main upstreams whose breaker allows requests
	GetAvailableMain() []*upstream.Upstream

	// GetAvailableFallback returns fallback upstreams whose breaker allows requests
	GetAvailableFallback() []*upstream.Upstream
}

var (
	_ Selector = (*WeightedRoundRobin)(nil)
	_ Selector = (*RoundRobin)(nil)
)

// New returns the selector for a configured strategy; unknown names get weighted round-robin
func New(strategy string, provider UpstreamProvider) Selector {
	if strategy == config.BalancerRoundRobin {
		return NewRoundRobin(provider)
	}
	return NewWeightedRoundRobin(provider)
}
