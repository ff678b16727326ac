package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"bulkgofer/internal/config"
)

// maxErrorBody bounds how much of a failed response ends up in the error
const maxErrorBody = 512

// Upstream represents a single remote endpoint
type Upstream struct {
	name           string
	url            string
	base           *url.URL // nil when url does not parse
	weight         int
	role           Role
	apiToken       string
	apiTokenHeader string
	multipleQuery  string

	httpClient *http.Client
	limiter    *rate.Limiter // nil when unlimited
	breaker    *CircuitBreaker
	status     *Status
	logger     zerolog.Logger
}

// Config for creating a new Upstream
type Config struct {
	Name           string
	URL            string
	Weight         int
	Role           Role
	APIToken       string
	APITokenHeader string
	MultipleQuery  string
	RateLimit      float64 // requests per second, 0 means unlimited
	RateBurst      int
	RequestTimeout time.Duration
	CircuitBreaker CircuitBreakerConfig
	Logger         zerolog.Logger
}

// NewUpstream creates a new Upstream instance
func NewUpstream(cfg Config) *Upstream {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.APITokenHeader == "" {
		cfg.APITokenHeader = config.DefaultAPITokenHeader
	}
	if cfg.MultipleQuery == "" {
		cfg.MultipleQuery = config.DefaultMultipleQuery
	}

	logger := cfg.Logger.With().Str("upstream", cfg.Name).Logger()

	base, err := url.Parse(cfg.URL)
	if err != nil {
		logger.Error().Err(err).Str("url", cfg.URL).Msg("invalid upstream url")
	}

	return &Upstream{
		name:           cfg.Name,
		url:            cfg.URL,
		base:           base,
		weight:         cfg.Weight,
		role:           cfg.Role,
		apiToken:       cfg.APIToken,
		apiTokenHeader: cfg.APITokenHeader,
		multipleQuery:  cfg.MultipleQuery,
		httpClient:     httpClient,
		limiter:        limiter,
		breaker:        NewCircuitBreaker(cfg.CircuitBreaker, logger),
		status:         NewStatus(),
		logger:         logger,
	}
}

// NewUpstreamFromConfig creates an Upstream from config
func NewUpstreamFromConfig(cfg config.UpstreamConfig, globalCfg *config.Config, logger zerolog.Logger) *Upstream {
	token := cfg.APIToken
	if token == "" {
		token = globalCfg.APIToken
	}

	return NewUpstream(Config{
		Name:           cfg.Name,
		URL:            cfg.URL,
		Weight:         cfg.Weight,
		Role:           RoleFromConfig(cfg.Role),
		APIToken:       token,
		APITokenHeader: globalCfg.APITokenHeader,
		MultipleQuery:  globalCfg.MultipleQuery,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		RequestTimeout: globalCfg.GetRequestTimeoutDuration(),
		CircuitBreaker: CircuitBreakerConfigFrom(globalCfg.CircuitBreaker),
		Logger:         logger,
	})
}

// Name returns the upstream name
func (u *Upstream) Name() string {
	return u.name
}

// URL returns the base URL
func (u *Upstream) URL() string {
	return u.url
}

// Weight returns the weight for load balancing
func (u *Upstream) Weight() int {
	return u.weight
}

// Role returns the upstream role
func (u *Upstream) Role() Role {
	return u.role
}

// IsMain returns true if this is a main upstream
func (u *Upstream) IsMain() bool {
	return u.role == RoleMain
}

// IsAvailable reports whether the circuit breaker lets requests through
func (u *Upstream) IsAvailable() bool {
	return u.breaker.AllowRequest()
}

// BreakerState returns the circuit breaker state name
func (u *Upstream) BreakerState() string {
	return string(u.breaker.State())
}

// SwapStats returns the request counters and resets them to zero
func (u *Upstream) SwapStats() Stats {
	return u.status.Swap()
}

// SendSingle posts one payload to path and returns the raw response body
func (u *Upstream) SendSingle(ctx context.Context, path string, body []byte) ([]byte, error) {
	u.status.RecordSingle()
	return u.post(ctx, path, false, body)
}

// SendCombined posts a JSON array of items payloads to the combined variant of path
func (u *Upstream) SendCombined(ctx context.Context, path string, body []byte, items int) ([]byte, error) {
	u.status.RecordCombined(items)
	return u.post(ctx, path, true, body)
}

// endpoint resolves path, which may carry its own query, against the base URL.
// Base query parameters come first, then the path's, then the multiple marker
// for combined calls.
func (u *Upstream) endpoint(path string, combined bool) (string, error) {
	if u.base == nil {
		return "", fmt.Errorf("invalid upstream url %q", u.url)
	}

	path, query, _ := strings.Cut(path, "?")
	target := u.base
	if path = strings.TrimLeft(path, "/"); path != "" {
		target = target.JoinPath(path)
	} else {
		copied := *target
		target = &copied
	}

	target.RawQuery = joinQuery(u.base.RawQuery, query)
	if combined {
		target.RawQuery = joinQuery(target.RawQuery, u.multipleQuery)
	}
	return target.String(), nil
}

func joinQuery(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "&")
}

func (u *Upstream) post(ctx context.Context, path string, combined bool, body []byte) ([]byte, error) {
	target, err := u.endpoint(path, combined)
	if err != nil {
		u.fail()
		return nil, err
	}

	if u.limiter != nil {
		if err := u.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if u.apiToken != "" {
		httpReq.Header.Set(u.apiTokenHeader, u.apiToken)
	}

	resp, err := u.httpClient.Do(httpReq)
	if err != nil {
		u.fail()
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		u.fail()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		u.fail()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	u.breaker.RecordSuccess()
	return data, nil
}

func (u *Upstream) fail() {
	u.status.RecordFailure()
	u.breaker.RecordFailure()
}

// Close releases idle connections
func (u *Upstream) Close() {
	u.httpClient.CloseIdleConnections()
}
