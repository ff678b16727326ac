// Package metrics exposes dispatcher and front end counters to Prometheus.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bulkgofer/internal/batcher"
)

// Result outcomes reported by the front ends
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeShape     = "shape_error"
	OutcomeStopped   = "stopped"
	OutcomeCanceled  = "canceled"
	OutcomeCached    = "cached"
)

// Collector records batching metrics. It implements batcher.Recorder.
type Collector struct {
	registry *prometheus.Registry

	submitted        *prometheus.CounterVec
	flushes          prometheus.Counter
	flushItems       prometheus.Histogram
	flushGroups      prometheus.Histogram
	flushDuration    prometheus.Histogram
	dispatches       *prometheus.CounterVec
	dispatchItems    *prometheus.HistogramVec
	dispatchDuration *prometheus.HistogramVec
	results          *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
}

var _ batcher.Recorder = (*Collector)(nil)

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{registry: reg}

	c.submitted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_submitted_total",
			Help:      "Payloads submitted to the dispatcher by group",
		},
		[]string{"group"},
	)

	c.flushes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flushes_total",
		Help:      "Flush cycles that drained at least one item",
	})

	c.flushItems = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "flush_items",
		Help:      "Items drained per flush",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	c.flushGroups = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "flush_destinations",
		Help:      "Destination groups per flush",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	})

	c.flushDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "flush_duration_seconds",
		Help:      "Time spent in one flush cycle",
		Buckets:   prometheus.DefBuckets,
	})

	c.dispatches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Outbound requests by mode and status",
		},
		[]string{"mode", "status"},
	)

	c.dispatchItems = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_items",
			Help:      "Payloads carried per outbound request",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"mode"},
	)

	c.dispatchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Outbound request duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	c.results = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Results returned to callers by outcome",
		},
		[]string{"outcome"},
	)

	c.cacheLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups",
		},
		[]string{"result"},
	)

	return c
}

// RecordSubmit counts one submitted payload under the destination's group.
// Paths and queries come from callers, so they never become label values.
func (c *Collector) RecordSubmit(destination string) {
	c.submitted.WithLabelValues(groupLabel(destination)).Inc()
}

// groupLabel returns the first path segment of a /{group}/{path} destination
func groupLabel(destination string) string {
	group := strings.TrimPrefix(destination, "/")
	if i := strings.IndexAny(group, "/?"); i >= 0 {
		group = group[:i]
	}
	return group
}

// RecordFlush observes one non-empty flush cycle
func (c *Collector) RecordFlush(items, groups int, d time.Duration) {
	c.flushes.Inc()
	c.flushItems.Observe(float64(items))
	c.flushGroups.Observe(float64(groups))
	c.flushDuration.Observe(d.Seconds())
}

// RecordDispatch observes one outbound request
func (c *Collector) RecordDispatch(mode batcher.Mode, items int, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.dispatches.WithLabelValues(string(mode), status).Inc()
	c.dispatchItems.WithLabelValues(string(mode)).Observe(float64(items))
	c.dispatchDuration.WithLabelValues(string(mode)).Observe(d.Seconds())
}

// RecordResult counts a result handed back to a caller
func (c *Collector) RecordResult(outcome string) {
	c.results.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts a cache hit or miss
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// RegisterQueueDepth exposes the intake queue length as a gauge
func (c *Collector) RegisterQueueDepth(namespace string, depth func() int) {
	promauto.With(c.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Items waiting for the next flush",
	}, func() float64 { return float64(depth()) })
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
