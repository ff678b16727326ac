package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkgofer/internal/config"
)

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	mc, err := NewMemoryCache(2, time.Minute)
	require.NoError(t, err)
	defer mc.Close()

	mc.Set(ctx, "a", []byte("1"))
	mc.Set(ctx, "b", []byte("2"))

	v, ok := mc.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "1", string(v))

	// "b" is now least recently used
	mc.Set(ctx, "c", []byte("3"))
	_, ok = mc.Get(ctx, "b")
	assert.False(t, ok)
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc, err := NewMemoryCache(10, 20*time.Millisecond)
	require.NoError(t, err)
	defer mc.Close()

	mc.Set(ctx, "k", []byte("v"))
	time.Sleep(40 * time.Millisecond)

	_, ok := mc.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	mc, err := NewMemoryCache(1, time.Second)
	require.NoError(t, err)
	mc.Close()
	mc.Close()
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc, err := NewRedisCache(context.Background(), RedisConfig{
		Addr:   mr.Addr(),
		Prefix: "test:",
		TTL:    time.Minute,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(rc.Close)

	return mr, rc
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, rc := setupTestRedis(t)
	ctx := context.Background()

	_, ok := rc.Get(ctx, "missing")
	assert.False(t, ok)

	rc.Set(ctx, "k", []byte(`{"volume":1}`))
	v, ok := rc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, `{"volume":1}`, string(v))

	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	mr.FastForward(2 * time.Minute)
	_, ok = rc.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache_BackendDownIsMiss(t *testing.T) {
	mr, rc := setupTestRedis(t)
	ctx := context.Background()

	rc.Set(ctx, "k", []byte("v"))
	mr.Close()

	_, ok := rc.Get(ctx, "k")
	assert.False(t, ok)
	rc.Set(ctx, "k", []byte("v"))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisCache(context.Background(), RedisConfig{Addr: addr}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNew_Backends(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, &config.Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &NoopCache{}, c)

	c, err = New(ctx, &config.Config{Cache: &config.CacheConfig{
		Enabled: true, Backend: config.CacheBackendMemory, TTL: 1, Size: 10,
	}}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
	c.Close()

	mr := miniredis.RunT(t)
	c, err = New(ctx, &config.Config{Cache: &config.CacheConfig{
		Enabled: true, Backend: config.CacheBackendRedis, TTL: 1, RedisAddr: mr.Addr(),
	}}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, c)
	c.Close()
}

func TestGenerateCacheKey_Normalizes(t *testing.T) {
	a := GenerateCacheKey("/meshes/sphere", []byte(`{"radius": 1, "segments": [8, 16]}`))
	b := GenerateCacheKey("/meshes/sphere", []byte(`{"segments":[8,16],"radius":1}`))
	assert.Equal(t, a, b)

	other := GenerateCacheKey("/meshes/cube", []byte(`{"radius":1,"segments":[8,16]}`))
	assert.NotEqual(t, a, other)

	big1 := GenerateCacheKey("/x", []byte(`{"id":12345678901234567890}`))
	big2 := GenerateCacheKey("/x", []byte(`{"id":12345678901234567891}`))
	assert.NotEqual(t, big1, big2)

	caseA := GenerateCacheKey("/x", []byte(`"Name"`))
	caseB := GenerateCacheKey("/x", []byte(`"name"`))
	assert.NotEqual(t, caseA, caseB)

	assert.Contains(t, a, "/meshes/sphere:")
}

func TestPolicy_IsCacheable(t *testing.T) {
	p := NewPolicy([]string{"/meshes/sphere", "stats/"})

	assert.False(t, p.IsCacheable("/meshes/sphere"))
	assert.False(t, p.IsCacheable("/meshes/sphere/"))
	assert.False(t, p.IsCacheable("/stats"))
	assert.True(t, p.IsCacheable("/meshes/cube"))

	var nilPolicy *Policy
	assert.True(t, nilPolicy.IsCacheable("/anything"))
}
