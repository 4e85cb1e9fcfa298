// Package store persists voter rolls, ballot boxes, boundary geometries,
// API caches, and analysis runs behind a driver-agnostic interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/config"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
)

// GeocodeCacheEntry is a cached geocoder result. Matched=false entries are
// negative cache hits: the address was attempted and no provider matched it,
// so it is not retried until the entry expires.
type GeocodeCacheEntry struct {
	Key       string
	Lat       *float64
	Lng       *float64
	Source    string
	Quality   string
	Matched   bool
	CachedAt  time.Time
	ExpiresAt time.Time
}

// Boundary is one TIGER/Line record: an EWKB MultiPolygon (SRID 4326) with
// its bounding box denormalized for cheap containment pre-checks.
type Boundary struct {
	Product   string
	GeoID     string
	Name      string
	StateFIPS string
	Year      int
	Geom      []byte
	MinLng    float64
	MinLat    float64
	MaxLng    float64
	MaxLat    float64
}

// BoundaryLoad records a completed TIGER load for incremental re-loads.
type BoundaryLoad struct {
	Product     string
	Year        int
	RecordCount int
	LoadedAt    time.Time
}

// VoterStats summarizes geocoding progress for a county's voter roll.
type VoterStats struct {
	Voters    int
	Buildings int
	Geocoded  int
}

// AnalysisFilter specifies criteria for listing analysis runs.
type AnalysisFilter struct {
	County string               `json:"county,omitempty"`
	Status model.AnalysisStatus `json:"status,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
	Offset int                  `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis pipeline.
type Store interface {
	// Ballot boxes
	UpsertBallotBoxes(ctx context.Context, county string, boxes []model.BallotBox) (int, error)
	ListBallotBoxes(ctx context.Context, county string) ([]model.BallotBox, error)

	// Voter addresses
	UpsertVoters(ctx context.Context, county string, addrs []model.VoterAddress) (int, error)
	ListVoters(ctx context.Context, county string) ([]model.VoterAddress, error)
	ListPendingGeocodes(ctx context.Context, county string, limit int) ([]model.VoterAddress, error)
	UpdateGeocode(ctx context.Context, buildingID string, lat, lng float64, source, quality string) error
	VoterStats(ctx context.Context, county string) (*VoterStats, error)

	// Geocode cache
	GetGeocodeCache(ctx context.Context, key string) (*GeocodeCacheEntry, error)
	SetGeocodeCache(ctx context.Context, entry GeocodeCacheEntry, ttl time.Duration) error
	DeleteExpiredGeocodes(ctx context.Context) (int, error)

	// Isochrone cache
	GetIsochrone(ctx context.Context, key string) ([]byte, error)
	SetIsochrone(ctx context.Context, key string, geom []byte) error

	// Boundaries
	ReplaceBoundaries(ctx context.Context, product string, year int, rows []Boundary) (int, error)
	GetBoundaryByName(ctx context.Context, product, stateFIPS, name string) (*Boundary, error)
	RecordBoundaryLoad(ctx context.Context, load BoundaryLoad) error
	GetBoundaryLoad(ctx context.Context, product string, year int) (*BoundaryLoad, error)
	ListBoundaryLoads(ctx context.Context) ([]BoundaryLoad, error)

	// Analyses
	CreateAnalysis(ctx context.Context, county string, travelType model.TravelType, travelMinutes int) (*model.Analysis, error)
	UpdateAnalysisStatus(ctx context.Context, analysisID string, status model.AnalysisStatus) error
	UpdateAnalysisResult(ctx context.Context, analysisID string, result *model.CoverageSummary) error
	GetAnalysis(ctx context.Context, analysisID string) (*model.Analysis, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		s, err = NewSQLite(cfg.Path)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}
