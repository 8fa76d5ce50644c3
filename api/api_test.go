package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/recipeingest/pipeline"
	"github.com/platewise/recipeingest/ratelimit"
	"github.com/platewise/recipeingest/recipe"
)

type stubIngester struct {
	result   *recipe.Result
	decision ratelimit.Decision
	err      error

	gotIdentity string
	gotURL      string
}

func (s *stubIngester) Ingest(_ context.Context, identity, rawURL string) (*recipe.Result, ratelimit.Decision, error) {
	s.gotIdentity = identity
	s.gotURL = rawURL
	return s.result, s.decision, s.err
}

func allowedDecision() ratelimit.Decision {
	return ratelimit.Decision{
		Allowed:   true,
		Limit:     30,
		Remaining: 29,
		ResetAt:   time.Now().Add(45 * time.Second),
	}
}

func postIngest(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/recipes/ingredients-from-url", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code, envelope.Error.Message
}

func TestIngestEndpointSuccess(t *testing.T) {
	name := "Garlic Butter Pasta"
	unit := "lb"
	ingester := &stubIngester{
		result: &recipe.Result{
			SourceURL:  "https://example.com/pasta",
			RecipeName: &name,
			Ingredients: []recipe.Ingredient{
				{Name: "spaghetti", Unit: &unit, Category: recipe.CategoryGrains},
			},
		},
		decision: allowedDecision(),
	}
	handler := NewHandler(ingester).Routes()

	rec := postIngest(t, handler, `{"url": "https://example.com/pasta"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, "203.0.113.7", ingester.gotIdentity)
	assert.Equal(t, "https://example.com/pasta", ingester.gotURL)

	var result recipe.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "https://example.com/pasta", result.SourceURL)
	require.Len(t, result.Ingredients, 1)
	assert.Equal(t, "spaghetti", result.Ingredients[0].Name)

	assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "29", rec.Header().Get("X-RateLimit-Remaining"))
	reset, err := strconv.Atoi(rec.Header().Get("X-RateLimit-Reset"))
	require.NoError(t, err)
	assert.InDelta(t, 45, reset, 2)
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestIngestEndpointBadBody(t *testing.T) {
	handler := NewHandler(&stubIngester{}).Routes()

	tests := []struct {
		name string
		body string
	}{
		{"not json", "give me the pasta recipe"},
		{"missing url", `{}`},
		{"empty url", `{"url": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postIngest(t, handler, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			code, _ := decodeError(t, rec)
			assert.Equal(t, "invalid_url", code)
		})
	}
}

func TestIngestEndpointPipelineError(t *testing.T) {
	ingester := &stubIngester{
		decision: allowedDecision(),
		err:      &pipeline.Error{Code: pipeline.CodeUnsupportedContent, Message: "no ingredients found on the page"},
	}
	handler := NewHandler(ingester).Routes()

	rec := postIngest(t, handler, `{"url": "https://example.com/about"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, message := decodeError(t, rec)
	assert.Equal(t, "unsupported_content", code)
	assert.Equal(t, "no ingredients found on the page", message)
}

func TestIngestEndpointRateLimited(t *testing.T) {
	ingester := &stubIngester{
		decision: ratelimit.Decision{
			Allowed:    false,
			Limit:      30,
			Remaining:  0,
			ResetAt:    time.Now().Add(42 * time.Second),
			RetryAfter: 42 * time.Second,
		},
		err: &pipeline.Error{Code: pipeline.CodeRateLimited, Message: "rate limit exceeded, try again later"},
	}
	handler := NewHandler(ingester).Routes()

	rec := postIngest(t, handler, `{"url": "https://example.com/pasta"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "rate_limited", code)

	assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
}

func TestIngestEndpointUnauthorized(t *testing.T) {
	ingester := &stubIngester{}
	handler := NewHandler(ingester, WithIdentityFunc(func(*http.Request) string {
		return ""
	})).Routes()

	rec := postIngest(t, handler, `{"url": "https://example.com/pasta"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "unauthorized", code)
	assert.Empty(t, ingester.gotURL, "unauthorized requests must not reach the pipeline")
}

func TestIngestEndpointMethodNotAllowed(t *testing.T) {
	handler := NewHandler(&stubIngester{}).Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/recipes/ingredients-from-url", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	handler := NewHandler(&stubIngester{}).Routes()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	handler := NewHandler(&stubIngester{}).Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "not_found", code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "198.51.100.4:9999"
	assert.Equal(t, "198.51.100.4", ClientIP(req))

	req.RemoteAddr = "bare-host"
	assert.Equal(t, "bare-host", ClientIP(req))
}
