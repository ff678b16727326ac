package config

import "time"

// Role defines the upstream role type
type Role string

const (
	RoleMain     Role = "main"
	RoleFallback Role = "fallback"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config represents the main configuration structure
type Config struct {
	Host                string                `json:"host" toml:"host"`
	HTTPPort            int                   `json:"httpPort" toml:"httpPort"`
	WSPort              int                   `json:"wsPort" toml:"wsPort"`
	MetricsPort         int                   `json:"metricsPort" toml:"metricsPort"` // 0 disables the metrics listener
	LogLevel            string                `json:"logLevel" toml:"logLevel"`
	MaxBodySize         int64                 `json:"maxBodySize" toml:"maxBodySize"`
	RequestTimeout      int                   `json:"requestTimeout" toml:"requestTimeout"` // ms - per call to an upstream
	FlushInterval       int                   `json:"flushInterval" toml:"flushInterval"`   // ms - time between flush cycles
	DispatchConcurrency int                   `json:"dispatchConcurrency" toml:"dispatchConcurrency"`
	MultipleQuery       string                `json:"multipleQuery" toml:"multipleQuery"`   // query marking a combined request
	APITokenHeader      string                `json:"apiTokenHeader" toml:"apiTokenHeader"` // header carrying the API token
	APIToken            string                `json:"apiToken" toml:"apiToken"`
	StatusLogInterval   int                   `json:"statusLogInterval" toml:"statusLogInterval"`
	StatsLogInterval    int                   `json:"statsLogInterval" toml:"statsLogInterval"`
	CircuitBreaker      *CircuitBreakerConfig `json:"circuitBreaker,omitempty" toml:"circuitBreaker,omitempty"`
	Cache               *CacheConfig          `json:"cache,omitempty" toml:"cache,omitempty"`
	Groups              []GroupConfig         `json:"groups" toml:"groups"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled             bool `json:"enabled" toml:"enabled"`
	FailureThreshold    int  `json:"failureThreshold" toml:"failureThreshold"`
	RecoveryTimeout     int  `json:"recoveryTimeout" toml:"recoveryTimeout"` // ms
	HalfOpenMaxRequests int  `json:"halfOpenMaxRequests" toml:"halfOpenMaxRequests"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Enabled       bool     `json:"enabled" toml:"enabled"`
	Backend       string   `json:"backend" toml:"backend"` // memory or redis
	TTL           int      `json:"ttl" toml:"ttl"`         // seconds
	Size          int      `json:"size" toml:"size"`       // number of entries, memory backend only
	DisabledPaths []string `json:"disabledPaths" toml:"disabledPaths"`
	RedisAddr     string   `json:"redisAddr" toml:"redisAddr"`
	RedisDB       int      `json:"redisDb" toml:"redisDb"`
	RedisPrefix   string   `json:"redisPrefix" toml:"redisPrefix"`
}

// Balancing strategies
const (
	BalancerWeighted   = "weighted"
	BalancerRoundRobin = "round-robin"
)

// GroupConfig represents a group of upstreams
type GroupConfig struct {
	Name      string           `json:"name" toml:"name"`
	Balancer  string           `json:"balancer" toml:"balancer"` // weighted (default) or round-robin
	Upstreams []UpstreamConfig `json:"upstreams" toml:"upstreams"`
}

// UpstreamConfig represents a single upstream configuration
type UpstreamConfig struct {
	Name      string  `json:"name" toml:"name"`
	URL       string  `json:"url" toml:"url"`
	Weight    int     `json:"weight" toml:"weight"`
	Role      Role    `json:"role" toml:"role"`
	APIToken  string  `json:"apiToken" toml:"apiToken"`   // overrides the global token
	RateLimit float64 `json:"rateLimit" toml:"rateLimit"` // requests per second, 0 means unlimited
	RateBurst int     `json:"rateBurst" toml:"rateBurst"`
}

// Default values
const (
	DefaultHost                = "localhost"
	DefaultHTTPPort            = 8080
	DefaultWSPort              = 8081
	DefaultMetricsPort         = 9090
	DefaultLogLevel            = "info"
	DefaultMaxBodySize         = int64(0) // 0 means no limit
	DefaultRequestTimeout      = 5000     // ms
	DefaultFlushInterval       = 200      // ms
	DefaultDispatchConcurrency = 4
	DefaultMultipleQuery       = "multiple=true"
	DefaultAPITokenHeader      = "api_token"
	DefaultStatusLogInterval   = 5000  // ms
	DefaultStatsLogInterval    = 60000 // ms
	DefaultUpstreamWeight      = 1
	DefaultUpstreamRole        = RoleMain
	DefaultCacheBackend        = CacheBackendMemory
	DefaultRedisPrefix         = "bulkgofer:"
	DefaultFailureThreshold    = 5
	DefaultRecoveryTimeout     = 30000 // ms
	DefaultHalfOpenMaxRequests = 2
)

// GetRequestTimeoutDuration returns request timeout as time.Duration
func (c *Config) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// GetFlushIntervalDuration returns flush interval as time.Duration
func (c *Config) GetFlushIntervalDuration() time.Duration {
	return time.Duration(c.FlushInterval) * time.Millisecond
}

// GetStatusLogIntervalDuration returns status log interval as time.Duration
func (c *Config) GetStatusLogIntervalDuration() time.Duration {
	return time.Duration(c.StatusLogInterval) * time.Millisecond
}

// GetStatsLogIntervalDuration returns stats log interval as time.Duration
func (c *Config) GetStatsLogIntervalDuration() time.Duration {
	return time.Duration(c.StatsLogInterval) * time.Millisecond
}

// IsCacheEnabled returns true if cache is configured and enabled
func (c *Config) IsCacheEnabled() bool {
	return c.Cache != nil && c.Cache.Enabled
}

// IsCircuitBreakerEnabled returns true if circuit breaker is configured and enabled
func (c *Config) IsCircuitBreakerEnabled() bool {
	return c.CircuitBreaker != nil && c.CircuitBreaker.Enabled
}

// GetTTLDuration returns cache TTL as time.Duration
func (c *CacheConfig) GetTTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// GetRecoveryTimeoutDuration returns the open-state duration as time.Duration
func (c *CircuitBreakerConfig) GetRecoveryTimeoutDuration() time.Duration {
	return time.Duration(c.RecoveryTimeout) * time.Millisecond
}
