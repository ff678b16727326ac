package balancer

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkgofer/internal/config"
	"bulkgofer/internal/upstream"
)

type staticProvider struct {
	main     []*upstream.Upstream
	fallback []*upstream.Upstream
}

func (p *staticProvider) GetAvailableMain() []*upstream.Upstream     { return p.main }
func (p *staticProvider) GetAvailableFallback() []*upstream.Upstream { return p.fallback }

func newUpstream(name string, weight int, role upstream.Role) *upstream.Upstream {
	return upstream.NewUpstream(upstream.Config{
		Name:   name,
		URL:    "http://" + name + ".invalid",
		Weight: weight,
		Role:   role,
		Logger: zerolog.Nop(),
	})
}

func TestWeightedRoundRobin_Distribution(t *testing.T) {
	a := newUpstream("a", 3, upstream.RoleMain)
	b := newUpstream("b", 1, upstream.RoleMain)
	wrr := NewWeightedRoundRobin(&staticProvider{main: []*upstream.Upstream{a, b}})

	counts := make(map[string]int)
	for i := 0; i < 400; i++ {
		u := wrr.Next()
		require.NotNil(t, u)
		counts[u.Name()]++
	}

	assert.Equal(t, 300, counts["a"])
	assert.Equal(t, 100, counts["b"])
}

func TestWeightedRoundRobin_Smooth(t *testing.T) {
	a := newUpstream("a", 3, upstream.RoleMain)
	b := newUpstream("b", 1, upstream.RoleMain)
	wrr := NewWeightedRoundRobin(&staticProvider{main: []*upstream.Upstream{a, b}})

	var names []string
	for i := 0; i < 8; i++ {
		names = append(names, wrr.Next().Name())
	}
	assert.Equal(t, []string{"a", "a", "b", "a", "a", "a", "b", "a"}, names)
}

func TestWeightedRoundRobin_Fallback(t *testing.T) {
	a := newUpstream("a", 1, upstream.RoleMain)
	f := newUpstream("f", 1, upstream.RoleFallback)
	provider := &staticProvider{main: []*upstream.Upstream{a}, fallback: []*upstream.Upstream{f}}
	wrr := NewWeightedRoundRobin(provider)

	assert.Equal(t, "a", wrr.Next().Name())

	provider.main = nil
	assert.Equal(t, "f", wrr.Next().Name())

	provider.fallback = nil
	assert.Nil(t, wrr.Next())
	assert.Nil(t, NewRoundRobin(provider).Next())
}

func TestRoundRobin_Cycles(t *testing.T) {
	a := newUpstream("a", 5, upstream.RoleMain)
	b := newUpstream("b", 1, upstream.RoleMain)
	rr := NewRoundRobin(&staticProvider{main: []*upstream.Upstream{a, b}})

	var names []string
	for i := 0; i < 4; i++ {
		names = append(names, rr.Next().Name())
	}
	assert.Equal(t, []string{"a", "b", "a", "b"}, names)
}

func TestNew_Strategy(t *testing.T) {
	provider := &staticProvider{}
	assert.IsType(t, &RoundRobin{}, New(config.BalancerRoundRobin, provider))
	assert.IsType(t, &WeightedRoundRobin{}, New(config.BalancerWeighted, provider))
	assert.IsType(t, &WeightedRoundRobin{}, New("", provider))
}
