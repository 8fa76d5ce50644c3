// Package api exposes the ingestion pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/platewise/recipeingest/pipeline"
	"github.com/platewise/recipeingest/ratelimit"
	"github.com/platewise/recipeingest/recipe"
)

// maxRequestBody bounds the JSON request body.
const maxRequestBody = 1 << 20 // 1 MiB

// Ingester runs the ingestion pipeline for one request.
type Ingester interface {
	Ingest(ctx context.Context, identity, rawURL string) (*recipe.Result, ratelimit.Decision, error)
}

// IdentityFunc extracts the client identity from a request. An empty
// identity means the caller could not be identified.
type IdentityFunc func(r *http.Request) string

// ClientIP is the default IdentityFunc. It keys rate limiting by the
// connection's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handler serves the recipe ingestion API.
type Handler struct {
	ingester Ingester
	identity IdentityFunc
	logger   *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithIdentityFunc overrides how client identities are derived.
func WithIdentityFunc(fn IdentityFunc) Option {
	return func(h *Handler) {
		h.identity = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a Handler backed by the given Ingester.
func NewHandler(ingester Ingester, opts ...Option) *Handler {
	h := &Handler{
		ingester: ingester,
		identity: ClientIP,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API route multiplexer.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/recipes/ingredients-from-url", h.handleIngest)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("/", h.handleNotFound)
	return mux
}

type ingestRequest struct {
	URL string `json:"url"`
}

type errorBody struct {
	Code    pipeline.Code `json:"code"`
	Message string        `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	identity := h.identity(r)
	if identity == "" {
		writeError(w, pipeline.CodeUnauthorized, "could not identify the caller")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pipeline.CodeInvalidURL, "request body must be JSON with a \"url\" field")
		return
	}
	if req.URL == "" {
		writeError(w, pipeline.CodeInvalidURL, "\"url\" is required")
		return
	}

	result, decision, err := h.ingester.Ingest(r.Context(), identity, req.URL)
	setRateLimitHeaders(w, decision)
	if err != nil {
		var perr *pipeline.Error
		if !errors.As(err, &perr) {
			h.logger.Error("Unclassified ingestion error", "error", err)
			writeError(w, pipeline.CodeServerError, "internal error")
			return
		}
		if perr.Code == pipeline.CodeRateLimited && decision.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.FormatInt(ceilSeconds(decision.RetryAfter), 10))
		}
		writeError(w, perr.Code, perr.Message)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, pipeline.CodeNotFound, "no such endpoint")
}

// setRateLimitHeaders reports the limiter state on every response that
// passed through the pipeline, allowed or not.
func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	if d.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	reset := ceilSeconds(time.Until(d.ResetAt))
	if reset < 0 {
		reset = 0
	}
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
}

func ceilSeconds(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}

func writeError(w http.ResponseWriter, code pipeline.Code, message string) {
	writeJSON(w, code.HTTPStatus(), errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
