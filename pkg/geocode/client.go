// Package geocode provides address geocoding via Census Geocoder (primary) and Google (fallback).
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Client geocodes addresses using Census Geocoder (primary) and Google (fallback).
type Client interface {
	// Geocode geocodes a single address.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)

	// BatchGeocode geocodes multiple addresses.
	BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error)
}

// AddressInput represents an address to geocode.
type AddressInput struct {
	ID      string // Optional identifier for batch correlation
	Street  string
	City    string
	State   string
	ZipCode string
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64
	Longitude float64
	Source    string // "census" or "google"
	Quality   string // "rooftop", "range", "centroid", "approximate"
	Matched   bool
}

// Cache stores geocode results, including non-matches so failed addresses are
// not retried until the entry expires.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Put(ctx context.Context, key string, result Result, ttl time.Duration) error
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for both Census and Google requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit for Census API calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// WithCache enables result caching with the given TTL.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(g *geocoder) {
		g.cache = c
		g.cacheTTL = ttl
	}
}

// WithConcurrency sets how many fallback requests run in parallel during
// batch geocoding.
func WithConcurrency(n int) Option {
	return func(g *geocoder) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

type geocoder struct {
	httpClient  *http.Client
	googleKey   string
	limiter     *rate.Limiter
	cache       Cache
	cacheTTL    time.Duration
	concurrency int
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(50, 50), // Census default: 50 req/s
		cacheTTL:    90 * 24 * time.Hour,
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode geocodes a single address, trying the cache, then Census, then
// Google if configured. A non-match from every provider is cached and
// returned as Matched=false, not as an error.
func (g *geocoder) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	key := cacheKey(addr)
	if cached, ok := g.checkCache(ctx, key); ok {
		return cached, nil
	}

	result, censusErr := g.geocodeCensus(ctx, addr)
	if censusErr == nil && result.Matched {
		g.storeCache(ctx, key, result)
		return result, nil
	}

	if g.googleKey != "" {
		googleResult, googleErr := g.geocodeGoogle(ctx, addr)
		if googleErr == nil && googleResult.Matched {
			g.storeCache(ctx, key, googleResult)
			return googleResult, nil
		}
	}

	// Only cache a definitive non-match. Transport errors stay uncached so
	// the address is retried on the next run.
	unmatched := &Result{Matched: false}
	if censusErr == nil {
		g.storeCache(ctx, key, unmatched)
	}
	return unmatched, nil
}

// BatchGeocode geocodes multiple addresses using the Census batch API, falling
// back to Google for individual unmatched addresses.
func (g *geocoder) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	// Assign IDs for batch correlation if not set.
	for i := range addrs {
		if addrs[i].ID == "" {
			addrs[i].ID = fmt.Sprintf("%d", i)
		}
	}

	results := make([]Result, len(addrs))
	pending := make([]int, 0, len(addrs))
	for i, addr := range addrs {
		if cached, ok := g.checkCache(ctx, cacheKey(addr)); ok {
			results[i] = *cached
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return results, nil
	}

	pendingAddrs := make([]AddressInput, len(pending))
	for j, i := range pending {
		pendingAddrs[j] = addrs[i]
	}

	batchResults, err := g.batchGeocodeCensus(ctx, pendingAddrs)
	if err != nil {
		zap.L().Warn("census batch geocode failed, falling back to one-line requests", zap.Error(err))
		return results, g.geocodeEach(ctx, addrs, pending, results)
	}

	// For unmatched Census results, try Google individually if configured.
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(g.concurrency)
	for j, i := range pending {
		r := batchResults[j]
		if r.Matched || g.googleKey == "" {
			results[i] = r
			g.storeCache(ctx, cacheKey(addrs[i]), &r)
			continue
		}
		grp.Go(func() error {
			googleResult, googleErr := g.geocodeGoogle(grpCtx, addrs[i])
			if googleErr == nil && googleResult.Matched {
				results[i] = *googleResult
			} else {
				results[i] = Result{Matched: false}
			}
			if googleErr == nil {
				g.storeCache(grpCtx, cacheKey(addrs[i]), &results[i])
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return results, err
	}

	return results, nil
}

// geocodeEach geocodes the pending indices one at a time, in parallel.
func (g *geocoder) geocodeEach(ctx context.Context, addrs []AddressInput, pending []int, results []Result) error {
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(g.concurrency)
	for _, i := range pending {
		grp.Go(func() error {
			r, err := g.Geocode(grpCtx, addrs[i])
			if err != nil {
				results[i] = Result{Matched: false}
				return nil
			}
			results[i] = *r
			return nil
		})
	}
	return grp.Wait()
}
