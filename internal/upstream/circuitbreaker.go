package upstream

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bulkgofer/internal/config"
)

// BreakerState is the state of a CircuitBreaker
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled             bool
	FailureThreshold    int           // consecutive failures that open the breaker
	RecoveryTimeout     time.Duration // time spent open before probing
	HalfOpenMaxRequests int           // successful probes needed to close again
}

// CircuitBreakerConfigFrom converts the file configuration. A nil config disables the breaker.
func CircuitBreakerConfigFrom(cfg *config.CircuitBreakerConfig) CircuitBreakerConfig {
	if cfg == nil {
		return CircuitBreakerConfig{}
	}
	return CircuitBreakerConfig{
		Enabled:             cfg.Enabled,
		FailureThreshold:    cfg.FailureThreshold,
		RecoveryTimeout:     cfg.GetRecoveryTimeoutDuration(),
		HalfOpenMaxRequests: cfg.HalfOpenMaxRequests,
	}
}

// CircuitBreaker takes an upstream out of selection after consecutive
// dispatch failures and lets it back in after successful probes.
// A disabled breaker is always closed.
type CircuitBreaker struct {
	cfg    CircuitBreakerConfig
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker creates a new CircuitBreaker
func NewCircuitBreaker(cfg CircuitBreakerConfig, logger zerolog.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = config.DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = time.Duration(config.DefaultRecoveryTimeout) * time.Millisecond
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = config.DefaultHalfOpenMaxRequests
	}
	return &CircuitBreaker{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		state:  BreakerClosed,
	}
}

// AllowRequest reports whether the upstream may be selected.
// An open breaker starts probing once RecoveryTimeout has passed.
func (cb *CircuitBreaker) AllowRequest() bool {
	if !cb.cfg.Enabled {
		return true
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.RecoveryTimeout {
		cb.transition(BreakerHalfOpen)
	}
	return cb.state != BreakerOpen
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.cfg.Enabled {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != BreakerHalfOpen {
		return
	}
	cb.successes++
	if cb.successes >= cb.cfg.HalfOpenMaxRequests {
		cb.transition(BreakerClosed)
	}
}

// RecordFailure records a failed request. Any failure while probing reopens the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	if !cb.cfg.Enabled {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == BreakerHalfOpen || (cb.state == BreakerClosed && cb.failures >= cb.cfg.FailureThreshold) {
		cb.transition(BreakerOpen)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transition must be called with mu held
func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	cb.state = to
	cb.successes = 0

	switch to {
	case BreakerOpen:
		cb.openedAt = cb.now()
		cb.logger.Warn().
			Str("from", string(from)).
			Int("failures", cb.failures).
			Dur("recoveryTimeout", cb.cfg.RecoveryTimeout).
			Msg("circuit breaker opened")
	case BreakerClosed:
		cb.failures = 0
		cb.logger.Info().Msg("circuit breaker closed")
	default:
		cb.logger.Info().Msg("circuit breaker probing")
	}
}
