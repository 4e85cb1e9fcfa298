package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const censusMatchJSON = `{
	"result": {
		"addressMatches": [{
			"coordinates": {"x": -122.3321, "y": 47.6062},
			"matchedAddress": "600 4TH AVE, SEATTLE, WA, 98104"
		}]
	}
}`

const censusNoMatchJSON = `{"result": {"addressMatches": []}}`

func TestGeocode_CensusMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, censusMatchJSON)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
	}

	r, err := g.Geocode(context.Background(), AddressInput{
		Street: "600 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104",
	})
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, "census", r.Source)
}

func TestGeocode_FallsBackToGoogle(t *testing.T) {
	censusSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, censusNoMatchJSON)
	}))
	defer censusSrv.Close()

	googleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{"geometry": {"location": {"lat": 47.61, "lng": -122.33}, "location_type": "RANGE_INTERPOLATED"}}]
		}`)
	}))
	defer googleSrv.Close()

	// Chain two rewrites: census URLs to the census server, google URLs to
	// the google server.
	transport := &rewriteTransport{
		base: &rewriteTransport{
			base:         http.DefaultTransport,
			testServer:   googleSrv.URL,
			targetPrefix: googleGeocodeURL,
		},
		testServer:   censusSrv.URL,
		targetPrefix: censusOneLineURL,
	}

	g := &geocoder{
		httpClient: &http.Client{Transport: transport},
		limiter:    newTestLimiter(),
		googleKey:  "test-key",
	}

	r, err := g.Geocode(context.Background(), AddressInput{
		Street: "1 Obscure Ln", City: "Seattle", State: "WA", ZipCode: "98104",
	})
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, "google", r.Source)
	assert.Equal(t, "range", r.Quality)
}

func TestGeocode_UnmatchedEverywhere(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, censusNoMatchJSON)
	}))
	defer srv.Close()

	cache := newMemCache()
	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
		cache:      cache,
		cacheTTL:   time.Hour,
	}

	r, err := g.Geocode(context.Background(), AddressInput{
		Street: "123 Nowhere St", City: "Faketown", State: "XX", ZipCode: "00000",
	})
	require.NoError(t, err)
	assert.False(t, r.Matched)

	// The definitive non-match is cached.
	assert.Equal(t, 1, cache.puts)
}

func TestGeocode_TransportErrorNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := newMemCache()
	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
		cache:      cache,
		cacheTTL:   time.Hour,
	}

	r, err := g.Geocode(context.Background(), AddressInput{Street: "600 4th Ave"})
	require.NoError(t, err)
	assert.False(t, r.Matched)
	assert.Equal(t, 0, cache.puts)
}

func TestGeocode_CacheHitSkipsProviders(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, censusMatchJSON)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
		cache:      newMemCache(),
		cacheTTL:   time.Hour,
	}

	addr := AddressInput{Street: "600 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104"}

	_, err := g.Geocode(context.Background(), addr)
	require.NoError(t, err)
	_, err = g.Geocode(context.Background(), addr)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestBatchGeocode_Empty(t *testing.T) {
	g := &geocoder{limiter: newTestLimiter()}
	results, err := g.BatchGeocode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestBatchGeocode_AllMatched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, `"0","a","Match","Exact","a","-122.3321,47.6062","1","L"
"1","b","Match","Non_Exact","b","-122.3,47.61","2","R"`)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient:  newRewriteClient(srv.URL, censusBatchURL),
		limiter:     newTestLimiter(),
		concurrency: 2,
	}

	results, err := g.BatchGeocode(context.Background(), []AddressInput{
		{Street: "600 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104"},
		{Street: "601 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Matched)
	assert.Equal(t, "rooftop", results[0].Quality)
	assert.True(t, results[1].Matched)
	assert.Equal(t, "range", results[1].Quality)
}

func TestBatchGeocode_CachePreFilter(t *testing.T) {
	var batchCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		batchCalls.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, `"1","b","Match","Exact","b","-122.3,47.61","2","R"`)
	}))
	defer srv.Close()

	cache := newMemCache()
	cached := AddressInput{Street: "600 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104"}
	require.NoError(t, cache.Put(context.Background(), cacheKey(cached), Result{
		Latitude: 47.6062, Longitude: -122.3321, Matched: true, Source: "census", Quality: "rooftop",
	}, time.Hour))

	g := &geocoder{
		httpClient:  newRewriteClient(srv.URL, censusBatchURL),
		limiter:     newTestLimiter(),
		cache:       cache,
		cacheTTL:    time.Hour,
		concurrency: 2,
	}

	results, err := g.BatchGeocode(context.Background(), []AddressInput{
		cached,
		{Street: "601 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Matched)
	assert.Equal(t, "rooftop", results[0].Quality)
	assert.True(t, results[1].Matched)
	assert.Equal(t, int32(1), batchCalls.Load())
}

func TestBatchGeocode_BatchFailureFallsBackToOneLine(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/geocoder/locations/addressbatch", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/geocoder/locations/onelineaddress", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, censusMatchJSON)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := &geocoder{
		httpClient:  newRewriteClient(srv.URL, "https://geocoding.geo.census.gov"),
		limiter:     newTestLimiter(),
		concurrency: 2,
	}

	results, err := g.BatchGeocode(context.Background(), []AddressInput{
		{Street: "600 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Matched)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient()
	g, ok := c.(*geocoder)
	require.True(t, ok)
	assert.NotNil(t, g.httpClient)
	assert.NotNil(t, g.limiter)
	assert.Equal(t, 8, g.concurrency)
	assert.Equal(t, 90*24*time.Hour, g.cacheTTL)
}
