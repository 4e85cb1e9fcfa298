// Package isochrone generates travel-time polygons around ballot boxes using
// the TravelTime time-map API.
package isochrone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/boundary"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/config"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/resilience"
)

const timeMapURL = "https://api.traveltimeapp.com/v4/time-map"

// ErrEmptyResult is returned when the API yields no usable shape for a
// location, for example a box unreachable by the requested travel mode.
var ErrEmptyResult = eris.New("isochrone: empty result")

// Cache persists generated isochrones keyed by location and travel parameters.
type Cache interface {
	GetIsochrone(ctx context.Context, key string) ([]byte, error)
	SetIsochrone(ctx context.Context, key string, geom []byte) error
}

// Client calls the TravelTime time-map API.
type Client struct {
	appID      string
	apiKey     string
	httpClient *http.Client
	cache      Cache
	retry      resilience.RetryConfig
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCache enables isochrone caching.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithMaxRetries sets how many attempts are made when the API rate limits.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retry.MaxAttempts = n
		}
	}
}

// NewClient creates a TravelTime client.
func NewClient(appID, apiKey string, opts ...Option) *Client {
	c := &Client{
		appID:      appID,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retry: resilience.RetryConfig{
			MaxAttempts:    4,
			InitialBackoff: 20 * time.Second,
			MaxBackoff:     2 * time.Minute,
			Multiplier:     1.5,
			OnRetry:        resilience.RetryLogger("traveltime", "time-map"),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes one isochrone to generate.
type Request struct {
	Location      model.Location
	TravelType    model.TravelType
	TravelMinutes int
	Arrival       time.Time
}

// CacheKey returns the cache key for a request. The arrival weekday and
// clock time are part of the key; the concrete date is not, so a Tuesday
// 18:00 isochrone is reused across weeks.
func (r Request) CacheKey() string {
	return fmt.Sprintf("%s_-_%s_-_%d_-_%s_-_%s",
		r.Location.NameOrID, r.TravelType, r.TravelMinutes,
		r.Arrival.Weekday(), r.Arrival.Format("1504"))
}

// timeMapRequest is the TravelTime API request body.
type timeMapRequest struct {
	ArrivalSearches []arrivalSearch `json:"arrival_searches"`
}

type arrivalSearch struct {
	ID             string         `json:"id"`
	Coords         coords         `json:"coords"`
	Transportation transportation `json:"transportation"`
	ArrivalTime    string         `json:"arrival_time"`
	TravelTime     int            `json:"travel_time"`
}

type coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type transportation struct {
	Type string `json:"type"`
}

// timeMapResponse is the TravelTime API response body.
type timeMapResponse struct {
	Results []struct {
		SearchID string  `json:"search_id"`
		Shapes   []shape `json:"shapes"`
	} `json:"results"`
}

type shape struct {
	Shell []coords   `json:"shell"`
	Holes [][]coords `json:"holes"`
}

// TimeMap generates the isochrone for a single request, using the cache when
// a matching polygon was generated before.
func (c *Client) TimeMap(ctx context.Context, req Request) (*geom.MultiPolygon, error) {
	if !req.TravelType.Valid() {
		return nil, eris.Errorf("isochrone: invalid travel type %q", req.TravelType)
	}

	key := req.CacheKey()
	if c.cache != nil {
		cached, err := c.cache.GetIsochrone(ctx, key)
		if err != nil {
			zap.L().Warn("isochrone cache lookup failed", zap.Error(err))
		} else if cached != nil {
			zap.L().Debug("isochrone cache hit", zap.String("key", key))
			return boundary.DecodeMultiPolygon(cached)
		}
	}

	mp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*geom.MultiPolygon, error) {
		return c.fetch(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		encoded, encErr := boundary.EncodeEWKB(mp)
		if encErr != nil {
			zap.L().Warn("isochrone cache encode failed", zap.Error(encErr))
		} else if putErr := c.cache.SetIsochrone(ctx, key, encoded); putErr != nil {
			zap.L().Warn("isochrone cache store failed", zap.Error(putErr))
		}
	}

	return mp, nil
}

func (c *Client) fetch(ctx context.Context, req Request) (*geom.MultiPolygon, error) {
	body := timeMapRequest{
		ArrivalSearches: []arrivalSearch{{
			ID:             req.Location.NameOrID,
			Coords:         coords{Lat: req.Location.Lat, Lng: req.Location.Lng},
			Transportation: transportation{Type: string(req.TravelType)},
			ArrivalTime:    req.Arrival.Format(time.RFC3339),
			TravelTime:     req.TravelMinutes * 60,
		}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "isochrone: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, timeMapURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "isochrone: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Application-Id", c.appID)
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "isochrone: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "isochrone: read body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("isochrone: traveltime returned status %d", resp.StatusCode),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("isochrone: traveltime returned status %d: %s", resp.StatusCode, respBody)
	}

	var tmResp timeMapResponse
	if err := json.Unmarshal(respBody, &tmResp); err != nil {
		return nil, eris.Wrap(err, "isochrone: parse response")
	}
	if len(tmResp.Results) == 0 {
		return nil, eris.Wrapf(ErrEmptyResult, "location %s", req.Location.NameOrID)
	}

	return shapesToMultiPolygon(tmResp.Results[0].Shapes)
}

// shapesToMultiPolygon converts TravelTime shapes (shell plus holes) into a
// MultiPolygon with SRID 4326.
func shapesToMultiPolygon(shapes []shape) (*geom.MultiPolygon, error) {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for _, s := range shapes {
		if len(s.Shell) < 3 {
			continue
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ringFromCoords(s.Shell)); err != nil {
			return nil, eris.Wrap(err, "isochrone: build shell")
		}
		for _, hole := range s.Holes {
			if len(hole) < 3 {
				continue
			}
			if err := poly.Push(ringFromCoords(hole)); err != nil {
				return nil, eris.Wrap(err, "isochrone: build hole")
			}
		}
		if err := mp.Push(poly); err != nil {
			return nil, eris.Wrap(err, "isochrone: push polygon")
		}
	}

	if mp.NumPolygons() == 0 {
		return nil, eris.Wrap(ErrEmptyResult, "no usable shapes in response")
	}
	return mp, nil
}

// ringFromCoords builds a closed linear ring from API coordinates.
func ringFromCoords(cs []coords) *geom.LinearRing {
	flat := make([]float64, 0, (len(cs)+1)*2)
	for _, c := range cs {
		flat = append(flat, c.Lng, c.Lat)
	}
	// The API does not close rings; go-geom expects first == last.
	if flat[0] != flat[len(flat)-2] || flat[1] != flat[len(flat)-1] {
		flat = append(flat, flat[0], flat[1])
	}
	return geom.NewLinearRingFlat(geom.XY, flat)
}

// NextArrival returns the next occurrence of the configured weekday at the
// configured clock time (HH:MM) in the configured timezone, strictly after
// now.
func NextArrival(now time.Time, cfg config.TravelTimeConfig) (time.Time, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "isochrone: load timezone %s", cfg.Timezone)
	}

	target, ok := model.Weekdays[model.Weekday(cfg.ArrivalWeekday)]
	if !ok {
		return time.Time{}, eris.Errorf("isochrone: invalid weekday %q", cfg.ArrivalWeekday)
	}

	clock, err := time.Parse("15:04", cfg.ArrivalTime)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "isochrone: invalid arrival time %q", cfg.ArrivalTime)
	}

	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(),
		clock.Hour(), clock.Minute(), 0, 0, loc)
	daysAhead := (int(target) - int(local.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, daysAhead)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate, nil
}
