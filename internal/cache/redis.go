package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisCache stores responses in Redis so several instances share hits
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

// RedisConfig configures a RedisCache
type RedisConfig struct {
	Addr   string
	DB     int
	Prefix string
	TTL    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection with PING
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
		prefix: cfg.Prefix,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Get retrieves a value; errors other than a missing key are logged and reported as a miss
func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := rc.client.Get(ctx, rc.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			rc.logger.Warn().Err(err).Str("key", key).Msg("redis get error")
		}
		return nil, false
	}
	return data, true
}

// Set stores a value with the cache TTL
func (rc *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := rc.client.Set(ctx, rc.prefix+key, value, rc.ttl).Err(); err != nil {
		rc.logger.Warn().Err(err).Str("key", key).Msg("redis set error")
	}
}

// Close closes the Redis client
func (rc *RedisCache) Close() {
	if err := rc.client.Close(); err != nil {
		rc.logger.Warn().Err(err).Msg("redis close error")
	}
}
