package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "BULKGOFER_"

// Load reads the configuration file, applies environment overrides and defaults, and validates it.
// Files ending in .toml are parsed as TOML, anything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	// a missing .env is fine
	_ = godotenv.Load()

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Parse decodes raw config data. ext selects the format (".toml" or anything else for JSON).
func Parse(data []byte, ext string) (*Config, error) {
	cfg := &Config{}

	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	return cfg, nil
}

// ApplyEnv overrides config values from BULKGOFER_* variables
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup(EnvPrefix + "FLUSH_INTERVAL"); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sFLUSH_INTERVAL: %w", EnvPrefix, err)
		}
		cfg.FlushInterval = ms
	}
	if v, ok := lookup(EnvPrefix + "API_TOKEN"); ok && v != "" {
		cfg.APIToken = v
	}
	if v, ok := lookup(EnvPrefix + "REDIS_ADDR"); ok && v != "" {
		if cfg.Cache == nil {
			cfg.Cache = &CacheConfig{Enabled: true, Backend: CacheBackendRedis}
		}
		cfg.Cache.RedisAddr = v
	}
	return nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.WSPort == 0 {
		cfg.WSPort = DefaultWSPort
	}
	// MetricsPort 0 disables metrics, so only negative values are rejected
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.DispatchConcurrency == 0 {
		cfg.DispatchConcurrency = DefaultDispatchConcurrency
	}
	if cfg.MultipleQuery == "" {
		cfg.MultipleQuery = DefaultMultipleQuery
	}
	if cfg.APITokenHeader == "" {
		cfg.APITokenHeader = DefaultAPITokenHeader
	}
	if cfg.StatusLogInterval == 0 {
		cfg.StatusLogInterval = DefaultStatusLogInterval
	}
	if cfg.StatsLogInterval == 0 {
		cfg.StatsLogInterval = DefaultStatsLogInterval
	}

	if cb := cfg.CircuitBreaker; cb != nil {
		if cb.FailureThreshold == 0 {
			cb.FailureThreshold = DefaultFailureThreshold
		}
		if cb.RecoveryTimeout == 0 {
			cb.RecoveryTimeout = DefaultRecoveryTimeout
		}
		if cb.HalfOpenMaxRequests == 0 {
			cb.HalfOpenMaxRequests = DefaultHalfOpenMaxRequests
		}
	}

	if c := cfg.Cache; c != nil {
		if c.Backend == "" {
			c.Backend = DefaultCacheBackend
		}
		if c.RedisPrefix == "" {
			c.RedisPrefix = DefaultRedisPrefix
		}
	}

	// Apply defaults to groups and upstreams
	for i := range cfg.Groups {
		if cfg.Groups[i].Balancer == "" {
			cfg.Groups[i].Balancer = BalancerWeighted
		}
		for j := range cfg.Groups[i].Upstreams {
			u := &cfg.Groups[i].Upstreams[j]
			if u.Weight == 0 {
				u.Weight = DefaultUpstreamWeight
			}
			if u.Role == "" {
				u.Role = DefaultUpstreamRole
			}
			if u.RateLimit > 0 && u.RateBurst == 0 {
				u.RateBurst = 1
			}
		}
	}
}

// validate reports every problem in cfg at once, joined into one error
func validate(cfg *Config) error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(len(cfg.Groups) > 0, "at least one group is required")
	seen := make(map[string]bool, len(cfg.Groups))
	for i, g := range cfg.Groups {
		if g.Name == "" {
			check(false, "group[%d]: name is required", i)
			continue
		}
		check(!seen[g.Name], "group[%d]: duplicate group name '%s'", i, g.Name)
		seen[g.Name] = true
		errs = append(errs, validateGroup(g)...)
	}

	check(validPort(cfg.HTTPPort), "httpPort must be between 1 and 65535")
	check(validPort(cfg.WSPort), "wsPort must be between 1 and 65535")
	check(cfg.MetricsPort == 0 || validPort(cfg.MetricsPort), "metricsPort must be between 0 and 65535")
	check(slices.Contains(logLevels, cfg.LogLevel), "logLevel must be one of: %s", strings.Join(logLevels, ", "))
	check(cfg.RequestTimeout >= 0, "requestTimeout must be non-negative")
	check(cfg.FlushInterval >= 0, "flushInterval must be positive")
	check(cfg.DispatchConcurrency >= 0, "dispatchConcurrency must be positive")
	check(cfg.MaxBodySize >= 0, "maxBodySize must be non-negative")

	if cb := cfg.CircuitBreaker; cb != nil && cb.Enabled {
		check(cb.FailureThreshold >= 0 && cb.RecoveryTimeout >= 0 && cb.HalfOpenMaxRequests >= 0,
			"circuitBreaker values must be non-negative")
	}

	if c := cfg.Cache; c != nil && c.Enabled {
		check(c.TTL > 0, "cache.ttl must be positive when cache is enabled")
		switch c.Backend {
		case CacheBackendMemory:
			check(c.Size > 0, "cache.size must be positive for the memory backend")
		case CacheBackendRedis:
			check(c.RedisAddr != "", "cache.redisAddr is required for the redis backend")
		default:
			check(false, "cache.backend must be '%s' or '%s'", CacheBackendMemory, CacheBackendRedis)
		}
	}

	return errors.Join(errs...)
}

var logLevels = []string{"debug", "info", "warn", "error"}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

func validateGroup(g GroupConfig) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("group '%s'%s", g.Name, fmt.Sprintf(format, args...)))
	}

	if strings.Contains(g.Name, "/") {
		fail(": name must not contain '/'")
	}
	if g.Balancer != BalancerWeighted && g.Balancer != BalancerRoundRobin {
		fail(": balancer must be '%s' or '%s'", BalancerWeighted, BalancerRoundRobin)
	}
	if len(g.Upstreams) == 0 {
		fail(": at least one upstream is required")
	}

	seen := make(map[string]bool, len(g.Upstreams))
	for j, u := range g.Upstreams {
		switch {
		case u.Name == "":
			fail(", upstream[%d]: name is required", j)
			continue
		case seen[u.Name]:
			fail(": duplicate upstream name '%s'", u.Name)
		}
		seen[u.Name] = true

		if u.URL == "" {
			fail(", upstream '%s': url is required", u.Name)
		} else if parsed, err := url.Parse(u.URL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			fail(", upstream '%s': url must be absolute, got '%s'", u.Name, u.URL)
		}
		if u.Weight <= 0 {
			fail(", upstream '%s': weight must be positive", u.Name)
		}
		if u.Role != RoleMain && u.Role != RoleFallback {
			fail(", upstream '%s': role must be '%s' or '%s'", u.Name, RoleMain, RoleFallback)
		}
		if u.RateLimit < 0 || u.RateBurst < 0 {
			fail(", upstream '%s': rateLimit and rateBurst must be non-negative", u.Name)
		}
	}
	return errs
}
