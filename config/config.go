// Package config provides configuration loading and management for the
// recipe ingestion service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Fetch     FetchConfig     `yaml:"fetch"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	LLM       LLMConfig       `yaml:"llm"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	// Addr is the listen address (default: ":8080")
	Addr string `yaml:"addr"`
	// ShutdownTimeout bounds graceful shutdown (duration string, e.g. "10s")
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `yaml:"level"`
	// Format is "text" or "json"
	Format string `yaml:"format"`
}

// FetchConfig configures the bounded page fetcher
type FetchConfig struct {
	// Timeout bounds the whole fetch (duration string)
	Timeout string `yaml:"timeout"`
	// MaxRedirects is the redirect hop cap
	MaxRedirects int `yaml:"max_redirects"`
	// MaxBodyBytes caps the response body size
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// UserAgent overrides the default User-Agent header
	UserAgent string `yaml:"user_agent"`
}

// RateLimitConfig configures per-client fixed-window limiting
type RateLimitConfig struct {
	// Limit is the maximum requests per window per client
	Limit int `yaml:"limit"`
	// Window is the window length (duration string, e.g. "60s")
	Window string `yaml:"window"`
}

// LLMConfig configures the extraction-service client
type LLMConfig struct {
	// Provider selects the adapter ("anthropic", "openai", "ollama")
	Provider string `yaml:"provider"`
	// BaseURL overrides the provider's default endpoint
	BaseURL string `yaml:"base_url"`
	// Model is the model identifier
	Model string `yaml:"model"`
	// Temperature controls randomness (nil = provider default)
	Temperature *float64 `yaml:"temperature"`
	// MaxTokens limits response length (0 = provider default)
	MaxTokens int `yaml:"max_tokens"`
	// Timeout bounds the extraction call (duration string)
	Timeout string `yaml:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Fetch: FetchConfig{
			Timeout:      "10s",
			MaxRedirects: 5,
			MaxBodyBytes: 2 << 20,
		},
		RateLimit: RateLimitConfig{
			Limit:  30,
			Window: "60s",
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "qwen2.5:14b",
			Timeout:  "60s",
		},
	}
}

// parseDuration parses a duration string, falling back to def when the
// value is empty or malformed. Validate catches malformed values up
// front, so the fallback only covers hand-built configs.
func parseDuration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// GetShutdownTimeout returns the parsed shutdown timeout
func (c ServerConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(c.ShutdownTimeout, 10*time.Second)
}

// GetTimeout returns the parsed fetch timeout
func (c FetchConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// GetWindow returns the parsed rate-limit window
func (c RateLimitConfig) GetWindow() time.Duration {
	return parseDuration(c.Window, 60*time.Second)
}

// GetTimeout returns the parsed extraction-call timeout
func (c LLMConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	if c.Fetch.Timeout != "" {
		if _, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
			return fmt.Errorf("fetch.timeout is not a valid duration: %w", err)
		}
	}
	if c.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must not be negative")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be positive")
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate_limit.limit must be positive")
	}
	if c.RateLimit.Window != "" {
		if d, err := time.ParseDuration(c.RateLimit.Window); err != nil || d <= 0 {
			return fmt.Errorf("rate_limit.window must be a positive duration")
		}
	}
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.Temperature != nil && (*c.LLM.Temperature < 0 || *c.LLM.Temperature > 2) {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, layered over the
// defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.ShutdownTimeout != "" {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		c.Logging.Format = other.Logging.Format
	}

	// Fetch
	if other.Fetch.Timeout != "" {
		c.Fetch.Timeout = other.Fetch.Timeout
	}
	if other.Fetch.MaxRedirects != 0 {
		c.Fetch.MaxRedirects = other.Fetch.MaxRedirects
	}
	if other.Fetch.MaxBodyBytes != 0 {
		c.Fetch.MaxBodyBytes = other.Fetch.MaxBodyBytes
	}
	if other.Fetch.UserAgent != "" {
		c.Fetch.UserAgent = other.Fetch.UserAgent
	}

	// RateLimit
	if other.RateLimit.Limit != 0 {
		c.RateLimit.Limit = other.RateLimit.Limit
	}
	if other.RateLimit.Window != "" {
		c.RateLimit.Window = other.RateLimit.Window
	}

	// LLM
	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.BaseURL != "" {
		c.LLM.BaseURL = other.LLM.BaseURL
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.Temperature != nil {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.MaxTokens != 0 {
		c.LLM.MaxTokens = other.LLM.MaxTokens
	}
	if other.LLM.Timeout != "" {
		c.LLM.Timeout = other.LLM.Timeout
	}
}
