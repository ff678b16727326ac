package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloads struct {
	mu      sync.Mutex
	configs []*Config
}

func (r *reloads) record(cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
}

func (r *reloads) last() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.configs) == 0 {
		return nil
	}
	return r.configs[len(r.configs)-1]
}

func (r *reloads) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.configs)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "config.toml", tomlConfig)

	got := &reloads{}
	w := NewWatcher(path, 10*time.Millisecond, got.record, zerolog.Nop())
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	updated := "flushInterval = 25\n" + tomlConfig
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	require.Eventually(t, func() bool {
		cfg := got.last()
		return cfg != nil && cfg.FlushInterval == 25
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "debug", got.last().LogLevel)
}

func TestWatcher_SkipsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "config.toml", tomlConfig)

	got := &reloads{}
	w := NewWatcher(path, 10*time.Millisecond, got.record, zerolog.Nop())
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	require.NoError(t, os.WriteFile(path, []byte(`logLevel = "loud"`+"\n"+tomlConfig), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, got.count())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := NewWatcher("/nonexistent/dir/config.json", 0, func(*Config) {}, zerolog.Nop())
	assert.Error(t, w.Start(context.Background()))
}
