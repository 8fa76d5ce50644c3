package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a minimal provider for exercising the client's HTTP
// handling without a real adapter.
type fakeProvider struct{}

func (p *fakeProvider) Name() string                 { return "fake" }
func (p *fakeProvider) BuildURL(baseURL string) string { return baseURL + "/complete" }
func (p *fakeProvider) SetHeaders(req *http.Request) {
	req.Header.Set("x-test-key", "secret")
}

func (p *fakeProvider) BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error) {
	return json.Marshal(map[string]any{"model": model, "messages": messages})
}

func (p *fakeProvider) ParseResponse(body []byte, model string) (*Response, error) {
	var resp struct {
		Text   string `json:"text"`
		Tokens int    `json:"tokens"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &Response{Content: resp.Text, Model: model, TokensUsed: resp.Tokens}, nil
}

func init() {
	RegisterProvider(&fakeProvider{})
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Provider: "fake",
		BaseURL:  baseURL,
		Model:    "test-model",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Provider: "nonexistent", Model: "m"})
	assert.Error(t, err)

	_, err = NewClient(Config{Provider: "fake"})
	assert.Error(t, err)
}

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/complete", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-test-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"{\"ingredients\":[]}","tokens":42}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Complete(context.Background(), ExtractionMessages("some page text"))
	require.NoError(t, err)
	assert.Equal(t, `{"ingredients":[]}`, resp.Content)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Equal(t, "test-model", resp.Model)
}

func TestCompleteRequiresMessages(t *testing.T) {
	client := newTestClient(t, "http://example.invalid")
	_, err := client.Complete(context.Background(), nil)
	assert.Error(t, err)
}

func TestCompleteErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Kind
	}{
		{"rate limited", http.StatusTooManyRequests, KindRateLimited},
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"forbidden", http.StatusForbidden, KindAuth},
		{"bad request", http.StatusBadRequest, KindBadRequest},
		{"gateway timeout", http.StatusGatewayTimeout, KindTimeout},
		{"internal error", http.StatusInternalServerError, KindUnavailable},
		{"teapot", http.StatusTeapot, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "provider says no", tt.status)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
			require.Error(t, err)

			apiErr, ok := err.(*APIError)
			require.True(t, ok, "expected *APIError, got %T", err)
			assert.Equal(t, tt.want, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		Provider: "fake",
		BaseURL:  srv.URL,
		Model:    "test-model",
		Timeout:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, apiErr.Kind)
}

func TestCompleteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, KindUnavailable, apiErr.Kind)
}
