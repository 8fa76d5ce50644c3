// Package main provides the recipeingest binary entry point.
// Recipeingest turns untrusted recipe URLs into normalized structured
// ingredient lists via safe fetching, content extraction, and an
// external extraction service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	// Register extraction providers via init()
	_ "github.com/platewise/recipeingest/llm/providers"

	"github.com/spf13/cobra"

	"github.com/platewise/recipeingest/api"
	"github.com/platewise/recipeingest/config"
	"github.com/platewise/recipeingest/extract"
	"github.com/platewise/recipeingest/fetch"
	"github.com/platewise/recipeingest/llm"
	"github.com/platewise/recipeingest/metrics"
	"github.com/platewise/recipeingest/pipeline"
	"github.com/platewise/recipeingest/ratelimit"
	"github.com/platewise/recipeingest/urlsafe"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "recipeingest"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "recipeingest",
		Short: "Recipe ingredient ingestion service",
		Long: `Recipeingest accepts recipe page URLs and returns normalized,
structured ingredient lists.

It validates URLs against internal-network targets, fetches pages with
strict size and time bounds, extracts recipe text (structured data
first, readable content second), and calls an external extraction
service exactly once per request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, addr, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; overrides config)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func run(configPath, addr, logLevel string) error {
	// Load configuration
	cfg := config.DefaultConfig()
	if configPath != "" {
		fileCfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg.Merge(fileCfg)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging. The level var lets config reloads adjust
	// verbosity without a restart.
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(cfg.Logging.Level))
	opts := &slog.HandlerOptions{Level: levelVar}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Wire the pipeline stages
	validator := urlsafe.New()
	fetcher := fetch.New(fetch.Options{
		Timeout:      cfg.Fetch.GetTimeout(),
		MaxRedirects: cfg.Fetch.MaxRedirects,
		MaxBodySize:  cfg.Fetch.MaxBodyBytes,
		UserAgent:    cfg.Fetch.UserAgent,
	})
	extractor := extract.New()

	completer, err := llm.NewClient(llm.Config{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.GetTimeout(),
	}, llm.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create extraction client: %w", err)
	}

	limiter := ratelimit.New(ratelimit.NewMemoryStore(), cfg.RateLimit.Limit, cfg.RateLimit.GetWindow(),
		ratelimit.WithLogger(logger))
	defer limiter.Close()

	pipe := pipeline.New(limiter, validator, fetcher, extractor, completer,
		pipeline.WithLogger(logger))

	// Watch the config file so rate limits and log level can change at
	// runtime. Other settings need a restart.
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, func(updated *config.Config) {
			limiter.UpdateLimits(updated.RateLimit.Limit, updated.RateLimit.GetWindow())
			levelVar.Set(parseLevel(updated.Logging.Level))
			logger.Info("Applied updated limits",
				"rate_limit", updated.RateLimit.Limit,
				"window", updated.RateLimit.Window,
				"log_level", updated.Logging.Level)
		}, logger)
		if err != nil {
			logger.Warn("Config watching disabled", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	// Assemble routes
	mux := http.NewServeMux()
	mux.Handle("/", api.NewHandler(pipe, api.WithLogger(logger)).Routes())
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Recipeingest ready",
			"version", Version,
			"addr", cfg.Server.Addr,
			"provider", cfg.LLM.Provider,
			"model", cfg.LLM.Model)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
