package upstream

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"bulkgofer/internal/config"
)

// ErrNoUpstream is returned when every upstream of a pool is unavailable
var ErrNoUpstream = errors.New("no available upstream")

// Pool is the set of upstreams serving one group. Membership is fixed at
// construction; availability follows each upstream's circuit breaker.
type Pool struct {
	name      string
	upstreams []*Upstream
	monitor   *Monitor
	selector  atomic.Pointer[Selector]
	logger    zerolog.Logger
}

// NewPool creates a new Pool from a group configuration
func NewPool(group config.GroupConfig, global *config.Config, logger zerolog.Logger) *Pool {
	logger = logger.With().Str("group", group.Name).Logger()

	upstreams := make([]*Upstream, len(group.Upstreams))
	for i, uc := range group.Upstreams {
		upstreams[i] = NewUpstreamFromConfig(uc, global, logger)
	}

	return NewPoolWithUpstreams(group.Name, upstreams,
		global.GetStatusLogIntervalDuration(),
		global.GetStatsLogIntervalDuration(),
		logger)
}

// NewPoolWithUpstreams creates a Pool around already built upstreams
func NewPoolWithUpstreams(name string, upstreams []*Upstream, statusLogInterval, statsLogInterval time.Duration, logger zerolog.Logger) *Pool {
	return &Pool{
		name:      name,
		upstreams: upstreams,
		monitor:   NewMonitor(upstreams, statusLogInterval, statsLogInterval, logger),
		logger:    logger,
	}
}

// Name returns the group name
func (p *Pool) Name() string { return p.name }

// SetSelector sets the load balancing strategy used by Select
func (p *Pool) SetSelector(s Selector) {
	p.selector.Store(&s)
}

// Start starts status and stats logging
func (p *Pool) Start() {
	p.monitor.Start()
	p.logger.Info().Int("upstreams", len(p.upstreams)).Msg("pool started")
}

// Stop stops logging and releases idle connections of every upstream
func (p *Pool) Stop() {
	p.monitor.Stop()
	for _, u := range p.upstreams {
		u.Close()
	}
	p.logger.Info().Msg("pool stopped")
}

// Select returns the upstream for the next dispatch, or ErrNoUpstream.
// Without a selector the first available main upstream wins, then the first fallback.
func (p *Pool) Select() (*Upstream, error) {
	var u *Upstream
	if s := p.selector.Load(); s != nil {
		u = (*s).Next()
	} else if main := p.GetAvailableMain(); len(main) > 0 {
		u = main[0]
	} else if fallback := p.GetAvailableFallback(); len(fallback) > 0 {
		u = fallback[0]
	}

	if u == nil {
		return nil, ErrNoUpstream
	}
	return u, nil
}

// Upstream returns the member named name, or nil
func (p *Pool) Upstream(name string) *Upstream {
	for _, u := range p.upstreams {
		if u.Name() == name {
			return u
		}
	}
	return nil
}

// GetAvailableMain returns main upstreams whose breaker allows requests
func (p *Pool) GetAvailableMain() []*Upstream {
	return p.available(RoleMain)
}

// GetAvailableFallback returns fallback upstreams whose breaker allows requests
func (p *Pool) GetAvailableFallback() []*Upstream {
	return p.available(RoleFallback)
}

func (p *Pool) available(role Role) []*Upstream {
	var out []*Upstream
	for _, u := range p.upstreams {
		if u.Role() == role && u.IsAvailable() {
			out = append(out, u)
		}
	}
	return out
}
