package upstream

import (
	"fmt"
	"sync/atomic"

	"bulkgofer/internal/config"
)

// Role represents the upstream role
type Role string

const (
	RoleMain     Role = "main"
	RoleFallback Role = "fallback"
)

// RoleFromConfig converts config.Role to upstream.Role
func RoleFromConfig(r config.Role) Role {
	switch r {
	case config.RoleFallback:
		return RoleFallback
	default:
		return RoleMain
	}
}

// Selector picks the upstream for the next call
type Selector interface {
	Next() *Upstream
}

// StatusError is returned when the remote endpoint answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
}

// Stats is a snapshot of an upstream's counters
type Stats struct {
	Requests         uint64
	CombinedRequests uint64
	Items            uint64
	Failures         uint64
}

// Status holds the per-upstream counters, swapped to zero on every stats log
type Status struct {
	requests         atomic.Uint64
	combinedRequests atomic.Uint64
	items            atomic.Uint64
	failures         atomic.Uint64
}

// NewStatus creates a new Status
func NewStatus() *Status {
	return &Status{}
}

// RecordSingle counts one single-payload call
func (s *Status) RecordSingle() {
	s.requests.Add(1)
	s.items.Add(1)
}

// RecordCombined counts one combined call carrying items payloads
func (s *Status) RecordCombined(items int) {
	s.requests.Add(1)
	s.combinedRequests.Add(1)
	s.items.Add(uint64(items))
}

// RecordFailure counts one failed call
func (s *Status) RecordFailure() {
	s.failures.Add(1)
}

// Swap returns the current counters and resets them to zero
func (s *Status) Swap() Stats {
	return Stats{
		Requests:         s.requests.Swap(0),
		CombinedRequests: s.combinedRequests.Swap(0),
		Items:            s.items.Swap(0),
		Failures:         s.failures.Swap(0),
	}
}
