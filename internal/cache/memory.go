package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is a process-local LRU cache whose entries expire after a fixed TTL
type MemoryCache struct {
	lru    *expirable.LRU[string, []byte]
	closed atomic.Bool
}

// NewMemoryCache creates a cache holding at most size responses for ttl each
func NewMemoryCache(size int, ttl time.Duration) (*MemoryCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}

	return &MemoryCache{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
	}, nil
}

// Get returns the response stored under key unless it has expired
func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	if mc.closed.Load() {
		return nil, false
	}
	return mc.lru.Get(key)
}

// Set stores a copy of value under key
func (mc *MemoryCache) Set(_ context.Context, key string, value []byte) {
	if mc.closed.Load() {
		return
	}
	mc.lru.Add(key, append([]byte(nil), value...))
}

// Len returns the number of entries, expired ones not yet evicted included
func (mc *MemoryCache) Len() int {
	return mc.lru.Len()
}

// Close drops every entry; later calls are no-ops
func (mc *MemoryCache) Close() {
	if mc.closed.CompareAndSwap(false, true) {
		mc.lru.Purge()
	}
}
