// Package llm provides a provider-agnostic client for the external
// text-extraction service. The service's output is free-form text
// treated as untrusted; validating it is the recipe package's job, not
// this one's.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Response contains the extraction-service completion result.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the actual model that was used.
	Model string

	// TokensUsed is the total tokens consumed (if available).
	TokensUsed int

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// Config holds the endpoint settings for a Client.
type Config struct {
	// Provider selects the registered provider adapter.
	Provider string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Model is the model identifier sent to the provider.
	Model string

	// Temperature controls randomness. nil uses the provider default.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int

	// Timeout bounds the whole call.
	Timeout time.Duration
}

// Client calls the extraction service through a provider adapter.
// It makes exactly one HTTP call per Complete invocation; retrying an
// ambiguous failure would risk double-billing, so that decision is left
// to the caller.
type Client struct {
	cfg        Config
	provider   Provider
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a Client for the configured provider. The provider
// must have been registered (the providers package does this in init).
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	provider := GetProvider(cfg.Provider)
	if provider == nil {
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	c := &Client{
		cfg:        cfg,
		provider:   provider,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete sends one completion request and returns the raw response.
func (c *Client) Complete(ctx context.Context, messages []Message) (*Response, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	body, err := c.provider.BuildRequestBody(c.cfg.Model, messages, c.cfg.Temperature, c.cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("build request body: %w", err)
	}

	endpoint := c.provider.BuildURL(c.cfg.BaseURL)
	c.logger.Debug("Sending extraction request",
		"provider", c.provider.Name(),
		"model", c.cfg.Model,
		"url", endpoint,
		"messages", len(messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &APIError{Kind: KindTimeout, msg: "extraction request timed out: " + err.Error()}
		}
		return nil, &APIError{Kind: KindUnavailable, msg: "extraction request failed: " + err.Error()}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, &APIError{Kind: KindUnavailable, msg: "read response body: " + err.Error()}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return c.provider.ParseResponse(respBody, c.cfg.Model)
}

// isTimeout reports whether err is a network-level timeout.
func isTimeout(err error) bool {
	var terr interface{ Timeout() bool }
	return errors.As(err, &terr) && terr.Timeout()
}
