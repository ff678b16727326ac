package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonConfig = `{
  "httpPort": 9000,
  "flushInterval": 50,
  "cache": {"enabled": true, "ttl": 10, "size": 100, "disabledPaths": ["/meshes/sphere"]},
  "groups": [
    {
      "name": "meshes",
      "upstreams": [
        {"name": "primary", "url": "http://localhost:7000"},
        {"name": "backup", "url": "http://localhost:7001", "role": "fallback", "weight": 3, "rateLimit": 20}
      ]
    }
  ]
}`

const tomlConfig = `
logLevel = "debug"
dispatchConcurrency = 8
apiToken = "secret"

[circuitBreaker]
enabled = true

[[groups]]
name = "meshes"

[[groups.upstreams]]
name = "primary"
url = "http://localhost:7000"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_JSON(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", jsonConfig))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, DefaultWSPort, cfg.WSPort)
	assert.Equal(t, 50*time.Millisecond, cfg.GetFlushIntervalDuration())
	assert.Equal(t, DefaultDispatchConcurrency, cfg.DispatchConcurrency)
	assert.Equal(t, "multiple=true", cfg.MultipleQuery)
	assert.Equal(t, "api_token", cfg.APITokenHeader)

	require.True(t, cfg.IsCacheEnabled())
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 10*time.Second, cfg.Cache.GetTTLDuration())
	assert.Equal(t, []string{"/meshes/sphere"}, cfg.Cache.DisabledPaths)

	require.Len(t, cfg.Groups, 1)
	assert.Equal(t, BalancerWeighted, cfg.Groups[0].Balancer)
	ups := cfg.Groups[0].Upstreams
	require.Len(t, ups, 2)
	assert.Equal(t, RoleMain, ups[0].Role)
	assert.Equal(t, 1, ups[0].Weight)
	assert.Equal(t, RoleFallback, ups[1].Role)
	assert.Equal(t, 3, ups[1].Weight)
	assert.Equal(t, 1, ups[1].RateBurst)
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.toml", tomlConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.DispatchConcurrency)
	assert.Equal(t, "secret", cfg.APIToken)
	assert.Equal(t, DefaultFlushInterval, cfg.FlushInterval)

	require.True(t, cfg.IsCircuitBreakerEnabled())
	assert.Equal(t, DefaultFailureThreshold, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.CircuitBreaker.GetRecoveryTimeoutDuration())

	require.Len(t, cfg.Groups, 1)
	assert.Equal(t, "http://localhost:7000", cfg.Groups[0].Upstreams[0].URL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"groups": [`), ".json")
	assert.Error(t, err)

	_, err = Parse([]byte(`groups = [`), ".toml")
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BULKGOFER_LOG_LEVEL":      "WARN",
		"BULKGOFER_FLUSH_INTERVAL": "25",
		"BULKGOFER_API_TOKEN":      "from-env",
		"BULKGOFER_REDIS_ADDR":     "127.0.0.1:6379",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := &Config{LogLevel: "info", APIToken: "from-file"}
	require.NoError(t, ApplyEnv(cfg, lookup))

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 25, cfg.FlushInterval)
	assert.Equal(t, "from-env", cfg.APIToken)
	require.NotNil(t, cfg.Cache)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "127.0.0.1:6379", cfg.Cache.RedisAddr)
}

func TestApplyEnv_BadInterval(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "BULKGOFER_FLUSH_INTERVAL" {
			return "soon", true
		}
		return "", false
	}
	assert.Error(t, ApplyEnv(&Config{}, lookup))
}

func validConfig() *Config {
	return &Config{
		Groups: []GroupConfig{{
			Name:      "meshes",
			Upstreams: []UpstreamConfig{{Name: "primary", URL: "http://localhost:7000"}},
		}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no groups", mutate: func(c *Config) { c.Groups = nil }, wantErr: "at least one group"},
		{name: "slash in group", mutate: func(c *Config) { c.Groups[0].Name = "a/b" }, wantErr: "must not contain"},
		{
			name: "duplicate group",
			mutate: func(c *Config) {
				c.Groups = append(c.Groups, c.Groups[0])
			},
			wantErr: "duplicate group name",
		},
		{name: "bad balancer", mutate: func(c *Config) { c.Groups[0].Balancer = "random" }, wantErr: "balancer must be"},
		{name: "missing url", mutate: func(c *Config) { c.Groups[0].Upstreams[0].URL = "" }, wantErr: "url is required"},
		{name: "relative url", mutate: func(c *Config) { c.Groups[0].Upstreams[0].URL = "remote/api" }, wantErr: "url must be absolute"},
		{name: "bad role", mutate: func(c *Config) { c.Groups[0].Upstreams[0].Role = "spare" }, wantErr: "role must be"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "logLevel"},
		{name: "negative flush interval", mutate: func(c *Config) { c.FlushInterval = -1 }, wantErr: "flushInterval"},
		{name: "bad metrics port", mutate: func(c *Config) { c.MetricsPort = 70000 }, wantErr: "metricsPort"},
		{
			name:    "redis without addr",
			mutate:  func(c *Config) { c.Cache = &CacheConfig{Enabled: true, Backend: CacheBackendRedis, TTL: 5} },
			wantErr: "redisAddr",
		},
		{
			name:    "memory without size",
			mutate:  func(c *Config) { c.Cache = &CacheConfig{Enabled: true, TTL: 5} },
			wantErr: "cache.size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			applyDefaults(cfg)

			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
