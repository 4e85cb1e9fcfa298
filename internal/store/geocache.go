package store

import (
	"context"
	"time"

	"github.com/usdigitalresponse/ballot-box-analysis/pkg/geocode"
)

// GeocodeCache adapts the store's geocode_cache table to the geocode.Cache
// interface.
type GeocodeCache struct {
	s Store
}

// NewGeocodeCache wraps a Store as a geocode result cache.
func NewGeocodeCache(s Store) *GeocodeCache {
	return &GeocodeCache{s: s}
}

func (c *GeocodeCache) Get(ctx context.Context, key string) (*geocode.Result, bool, error) {
	e, err := c.s.GetGeocodeCache(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if e == nil {
		return nil, false, nil
	}

	r := &geocode.Result{
		Source:  e.Source,
		Quality: e.Quality,
		Matched: e.Matched,
	}
	if e.Lat != nil && e.Lng != nil {
		r.Latitude, r.Longitude = *e.Lat, *e.Lng
	}
	return r, true, nil
}

func (c *GeocodeCache) Put(ctx context.Context, key string, r geocode.Result, ttl time.Duration) error {
	e := GeocodeCacheEntry{
		Key:     key,
		Source:  r.Source,
		Quality: r.Quality,
		Matched: r.Matched,
	}
	if r.Matched {
		lat, lng := r.Latitude, r.Longitude
		e.Lat, e.Lng = &lat, &lng
	}
	return c.s.SetGeocodeCache(ctx, e, ttl)
}
