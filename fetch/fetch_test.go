package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var ferr *Error
	require.ErrorAs(t, err, &ferr)
	return ferr.Kind
}

func TestFetchSuccess(t *testing.T) {
	const page = "<html><body><h1>Pancakes</h1></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Contains(t, r.Header.Get("User-Agent"), "recipeingest")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	f := New(Options{})
	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, page, string(res.Body))
	assert.Equal(t, "text/html; charset=utf-8", res.ContentType)
	assert.Equal(t, srv.URL, res.FinalURL)
}

func TestFetchFinalURLAfterRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Options{})
	res, err := f.Fetch(context.Background(), srv.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/final", res.FinalURL)
}

func TestFetchTooManyRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	f := New(Options{MaxRedirects: 5})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Equal(t, KindTooManyRedirects, kindOf(t, err))
}

func TestFetchDeclaredTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Length", "4096")
		w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	f := New(Options{MaxBodySize: 1024})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Equal(t, KindTooLarge, kindOf(t, err))
}

// A chunked response with no Content-Length must still be capped on the
// bytes actually received.
func TestFetchStreamedTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		flusher := w.(http.Flusher)
		chunk := []byte(strings.Repeat("a", 512))
		for i := 0; i < 8; i++ {
			w.Write(chunk)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	f := New(Options{MaxBodySize: 1024})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Equal(t, KindTooLarge, kindOf(t, err))
}

func TestFetchInvalidContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	}))
	defer srv.Close()

	f := New(Options{})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Equal(t, KindInvalidContentType, kindOf(t, err))
}

func TestFetchXHTMLAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xhtml+xml")
		fmt.Fprint(w, "<html/>")
	}))
	defer srv.Close()

	f := New(Options{})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.NoError(t, err)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	f := New(Options{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Equal(t, KindTimeout, kindOf(t, err))
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := New(Options{})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Equal(t, KindNotFound, kindOf(t, err))
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	f := New(Options{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), addr)
	assert.Equal(t, KindGeneric, kindOf(t, err))
}

// blockingTransport mimics an egress filter refusing a dial.
type blockingTransport struct{}

func (blockingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("dial tcp: %w", ErrBlockedAddress)
}

func TestFetchSSRFBlocked(t *testing.T) {
	f := New(Options{Transport: blockingTransport{}})
	_, err := f.Fetch(context.Background(), "http://example.com/")
	assert.Equal(t, KindSSRFBlocked, kindOf(t, err))
	assert.True(t, errors.Is(err, ErrBlockedAddress))
}
