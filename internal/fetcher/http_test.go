package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		Timeout:    10 * time.Second,
		MaxRetries: 3,
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ballot-box-analysis/1.0", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, "tiger data")
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "tiger data", string(content))
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	assert.Equal(t, int32(2), calls.Load())
}

func TestDownloadNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDownloadExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "zip contents")
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "archive.zip")
	n, err := newTestFetcher().DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(len("zip contents")), n)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "zip contents", string(content))
}

func TestAdaptiveLimiter(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 5)
	assert.Equal(t, rate.Limit(10), lim.Limit())

	lim.OnRateLimit()
	assert.Equal(t, rate.Limit(5), lim.Limit())

	// Floor at a quarter of the initial rate.
	for range 10 {
		lim.OnRateLimit()
	}
	assert.Equal(t, rate.Limit(2.5), lim.Limit())

	// Recovery climbs back but never exceeds twice the initial rate.
	for range 50 {
		lim.OnSuccess()
	}
	assert.Equal(t, rate.Limit(20), lim.Limit())
}

func TestDefaultRateLimiters(t *testing.T) {
	limiters := DefaultRateLimiters()
	assert.Contains(t, limiters, "www2.census.gov")
	assert.Contains(t, limiters, "ftp2.census.gov")
}
