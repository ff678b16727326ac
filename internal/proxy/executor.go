package proxy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bulkgofer/internal/batcher"
	"bulkgofer/internal/cache"
	"bulkgofer/internal/metrics"
)

// Submitter queues payloads for batched dispatch
type Submitter interface {
	Submit(destination string, body []byte) *batcher.Result
}

// ResultRecorder receives front end outcomes
type ResultRecorder interface {
	RecordResult(outcome string)
	RecordCacheLookup(hit bool)
}

type noopResultRecorder struct{}

func (noopResultRecorder) RecordResult(string)     {}
func (noopResultRecorder) RecordCacheLookup(bool) {}

// Response is the outcome of one executed payload
type Response struct {
	Body      []byte
	RequestID string
	Cached    bool
}

// Executor runs one payload through the cache and the dispatcher.
// Both front ends share it.
type Executor struct {
	submitter   Submitter
	cache       cache.Cache
	policy      *cache.Policy
	recorder    ResultRecorder
	waitTimeout time.Duration
	logger      zerolog.Logger
}

// ExecutorConfig configures an Executor
type ExecutorConfig struct {
	Cache       cache.Cache
	Policy      *cache.Policy
	Recorder    ResultRecorder
	WaitTimeout time.Duration // 0 waits as long as the caller's context allows
	Logger      zerolog.Logger
}

// NewExecutor creates a new Executor
func NewExecutor(submitter Submitter, cfg ExecutorConfig) *Executor {
	if cfg.Cache == nil {
		cfg.Cache = cache.NewNoopCache()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopResultRecorder{}
	}

	return &Executor{
		submitter:   submitter,
		cache:       cfg.Cache,
		policy:      cfg.Policy,
		recorder:    cfg.Recorder,
		waitTimeout: cfg.WaitTimeout,
		logger:      cfg.Logger,
	}
}

// Execute returns the cached response for destination and body, or submits the
// payload and waits for its result
func (e *Executor) Execute(ctx context.Context, destination string, body []byte) (*Response, error) {
	cacheable := e.policy.IsCacheable(destination)

	var cacheKey string
	if cacheable {
		cacheKey = cache.GenerateCacheKey(destination, body)
		if cached, found := e.cache.Get(ctx, cacheKey); found {
			e.recorder.RecordCacheLookup(true)
			e.recorder.RecordResult(metrics.OutcomeCached)
			e.logger.Debug().
				Str("destination", destination).
				Str("cacheKey", cacheKey).
				Msg("cache hit")
			return &Response{Body: cached, RequestID: uuid.NewString(), Cached: true}, nil
		}
		e.recorder.RecordCacheLookup(false)
	}

	result := e.submitter.Submit(destination, body)

	if e.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.waitTimeout)
		defer cancel()
	}

	value, err := result.Wait(ctx)
	if err != nil {
		_, _, outcome := Classify(err)
		e.recorder.RecordResult(outcome)
		e.logger.Debug().
			Err(err).
			Str("destination", destination).
			Str("request", result.ID()).
			Msg("request failed")
		return nil, err
	}

	e.recorder.RecordResult(metrics.OutcomeOK)

	if cacheable {
		e.cache.Set(ctx, cacheKey, value)
		e.logger.Debug().
			Str("destination", destination).
			Str("cacheKey", cacheKey).
			Msg("cached response")
	}

	return &Response{Body: value, RequestID: result.ID()}, nil
}
