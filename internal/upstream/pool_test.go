package upstream

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func poolUpstream(name string, role Role, breaker bool) *Upstream {
	return NewUpstream(Config{
		Name:   name,
		URL:    "http://" + name + ".invalid",
		Weight: 1,
		Role:   role,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          breaker,
			FailureThreshold: 1,
			RecoveryTimeout:  time.Hour,
		},
		Logger: zerolog.Nop(),
	})
}

func TestPool_PrefersMain(t *testing.T) {
	main := poolUpstream("main", RoleMain, true)
	fallback := poolUpstream("fallback", RoleFallback, true)
	p := NewPoolWithUpstreams("meshes", []*Upstream{fallback, main}, 0, 0, zerolog.Nop())

	u, err := p.Select()
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if u.Name() != "main" {
		t.Errorf("selected %s, want main", u.Name())
	}

	// opening main's breaker moves traffic to the fallback
	main.breaker.RecordFailure()
	u, err = p.Select()
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if u.Name() != "fallback" {
		t.Errorf("selected %s, want fallback", u.Name())
	}

	fallback.breaker.RecordFailure()
	if _, err := p.Select(); !errors.Is(err, ErrNoUpstream) {
		t.Errorf("err = %v, want ErrNoUpstream", err)
	}
}

type fixedSelector struct{ u *Upstream }

func (s fixedSelector) Next() *Upstream { return s.u }

func TestPool_UsesSelector(t *testing.T) {
	a := poolUpstream("a", RoleMain, false)
	b := poolUpstream("b", RoleMain, false)
	p := NewPoolWithUpstreams("meshes", []*Upstream{a, b}, 0, 0, zerolog.Nop())
	p.SetSelector(fixedSelector{u: b})

	u, err := p.Select()
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if u != b {
		t.Errorf("selected %s, want b", u.Name())
	}
	if p.Upstream("a") != a || p.Upstream("zzz") != nil {
		t.Error("Upstream lookup mismatch")
	}
}

func TestMonitor_LogStatsResetsCounters(t *testing.T) {
	a := poolUpstream("a", RoleMain, false)
	b := poolUpstream("b", RoleFallback, false)
	a.status.RecordCombined(3)
	b.status.RecordSingle()
	b.status.RecordFailure()

	m := NewMonitor([]*Upstream{a, b}, 0, time.Minute, zerolog.Nop())
	total := m.LogStats()
	want := Stats{Requests: 2, CombinedRequests: 1, Items: 4, Failures: 1}
	if total != want {
		t.Errorf("total = %+v, want %+v", total, want)
	}
	if again := m.LogStats(); again != (Stats{}) {
		t.Errorf("counters not reset: %+v", again)
	}

	m.LogStatus()
	m.Start()
	m.Stop()
}
