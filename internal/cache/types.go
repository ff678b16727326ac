package cache

import "context"

// Cache stores response bodies by key.
// Implementations treat backend failures as misses.
type Cache interface {
	// Get returns the cached data and true if found, nil and false otherwise
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a response under key until the cache TTL expires
	Set(ctx context.Context, key string, value []byte)

	// Close releases any resources held by the cache
	Close()
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*NoopCache)(nil)
)

// NoopCache never stores anything. It stands in when caching is disabled.
type NoopCache struct{}

// NewNoopCache creates a NoopCache
func NewNoopCache() *NoopCache { return &NoopCache{} }

func (*NoopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (*NoopCache) Set(context.Context, string, []byte) {}
func (*NoopCache) Close() {}
