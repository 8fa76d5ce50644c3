package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Fetch.GetTimeout())
	assert.Equal(t, 5, cfg.Fetch.MaxRedirects)
	assert.Equal(t, int64(2<<20), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, 30, cfg.RateLimit.Limit)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.GetWindow())
	assert.Equal(t, 60*time.Second, cfg.LLM.GetTimeout())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
fetch:
  timeout: 5s
  max_body_bytes: 1048576
rate_limit:
  limit: 10
  window: 30s
llm:
  provider: anthropic
  model: claude-sonnet-4-5
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Fetch.GetTimeout())
	assert.Equal(t, int64(1048576), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, 10, cfg.RateLimit.Limit)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.GetWindow())
	assert.Equal(t, "anthropic", cfg.LLM.Provider)

	// Defaults survive for unset fields.
	assert.Equal(t, 5, cfg.Fetch.MaxRedirects)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFileMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: a: mapping"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad fetch timeout", func(c *Config) { c.Fetch.Timeout = "soon" }},
		{"negative redirects", func(c *Config) { c.Fetch.MaxRedirects = -1 }},
		{"zero body size", func(c *Config) { c.Fetch.MaxBodyBytes = 0 }},
		{"zero limit", func(c *Config) { c.RateLimit.Limit = 0 }},
		{"negative window", func(c *Config) { c.RateLimit.Window = "-10s" }},
		{"no provider", func(c *Config) { c.LLM.Provider = "" }},
		{"no model", func(c *Config) { c.LLM.Model = "" }},
		{"temperature out of range", func(c *Config) { temp := 3.5; c.LLM.Temperature = &temp }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	temp := 0.3
	base.Merge(&Config{
		Server:    ServerConfig{Addr: ":9999"},
		RateLimit: RateLimitConfig{Limit: 5},
		LLM:       LLMConfig{Temperature: &temp},
	})

	assert.Equal(t, ":9999", base.Server.Addr)
	assert.Equal(t, 5, base.RateLimit.Limit)
	require.NotNil(t, base.LLM.Temperature)
	assert.Equal(t, 0.3, *base.LLM.Temperature)

	// Unset fields keep their values.
	assert.Equal(t, "60s", base.RateLimit.Window)
	assert.Equal(t, "info", base.Logging.Level)

	base.Merge(nil) // must not panic
	assert.Equal(t, ":9999", base.Server.Addr)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":7070"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", loaded.Server.Addr)
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, DefaultConfig().SaveToFile(path))

	var mu sync.Mutex
	var got *Config
	w, err := NewWatcher(path, func(c *Config) {
		mu.Lock()
		got = c
		mu.Unlock()
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	updated := DefaultConfig()
	updated.RateLimit.Limit = 99
	require.NoError(t, updated.SaveToFile(path))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil && got.RateLimit.Limit == 99
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWatcherIgnoresInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, DefaultConfig().SaveToFile(path))

	var mu sync.Mutex
	calls := 0
	w, err := NewWatcher(path, func(*Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("rate_limit:\n  limit: -1\n"), 0644))

	time.Sleep(time.Second)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls, "invalid config must not trigger the callback")
}
