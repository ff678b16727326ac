package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Monitor periodically logs breaker status and request statistics of a pool's upstreams
type Monitor struct {
	upstreams         []*Upstream
	statusLogInterval time.Duration
	statsLogInterval  time.Duration
	logger            zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a new Monitor. A zero interval disables that log.
func NewMonitor(upstreams []*Upstream, statusLogInterval, statsLogInterval time.Duration, logger zerolog.Logger) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		upstreams:         upstreams,
		statusLogInterval: statusLogInterval,
		statsLogInterval:  statsLogInterval,
		logger:            logger,
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Start begins the logging loops
func (m *Monitor) Start() {
	if m.statusLogInterval > 0 {
		m.wg.Add(1)
		go m.every(m.statusLogInterval, m.LogStatus)
	}

	if m.statsLogInterval > 0 {
		m.wg.Add(1)
		go m.every(m.statsLogInterval, func() { m.LogStats() })
	}
}

// Stop stops the logging loops
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) every(interval time.Duration, fn func()) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// LogStatus logs which upstreams are currently available, split by role
func (m *Monitor) LogStatus() {
	var availableMain, unavailableMain, availableFallback, unavailableFallback []string

	for _, u := range m.upstreams {
		status := u.Name() + "(" + u.BreakerState() + ")"
		available := u.IsAvailable()

		if u.IsMain() {
			if available {
				availableMain = append(availableMain, status)
			} else {
				unavailableMain = append(unavailableMain, status)
			}
		} else {
			if available {
				availableFallback = append(availableFallback, status)
			} else {
				unavailableFallback = append(unavailableFallback, status)
			}
		}
	}

	m.logger.Info().
		Strs("availableMain", availableMain).
		Strs("unavailableMain", unavailableMain).
		Strs("availableFallback", availableFallback).
		Strs("unavailableFallback", unavailableFallback).
		Msg("upstreams status")
}

// LogStats logs the request counters of every upstream, resets them, and returns the totals
func (m *Monitor) LogStats() Stats {
	var total Stats
	perUpstream := make(map[string]Stats, len(m.upstreams))

	for _, u := range m.upstreams {
		s := u.SwapStats()
		perUpstream[u.Name()] = s
		total.Requests += s.Requests
		total.CombinedRequests += s.CombinedRequests
		total.Items += s.Items
		total.Failures += s.Failures
	}

	logEvent := m.logger.Info().
		Uint64("totalRequests", total.Requests).
		Uint64("combinedRequests", total.CombinedRequests).
		Uint64("items", total.Items).
		Uint64("failures", total.Failures).
		Dur("interval", m.statsLogInterval)

	for _, u := range m.upstreams {
		logEvent = logEvent.Uint64(u.Name(), perUpstream[u.Name()].Requests)
	}

	logEvent.Msg("request statistics")
	return total
}
