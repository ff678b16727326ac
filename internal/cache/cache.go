package cache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"bulkgofer/internal/config"
)

// New builds the configured cache backend, or a NoopCache when caching is disabled
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Cache, error) {
	if !cfg.IsCacheEnabled() {
		return NewNoopCache(), nil
	}

	c := cfg.Cache
	switch c.Backend {
	case config.CacheBackendRedis:
		rc, err := NewRedisCache(ctx, RedisConfig{
			Addr:   c.RedisAddr,
			DB:     c.RedisDB,
			Prefix: c.RedisPrefix,
			TTL:    c.GetTTLDuration(),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", c.RedisAddr, err)
		}
		logger.Info().Str("addr", c.RedisAddr).Dur("ttl", c.GetTTLDuration()).Msg("redis cache enabled")
		return rc, nil
	default:
		mc, err := NewMemoryCache(c.Size, c.GetTTLDuration())
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		logger.Info().Int("size", c.Size).Dur("ttl", c.GetTTLDuration()).Msg("memory cache enabled")
		return mc, nil
	}
}
