package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/db"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"update_geocode":    `UPDATE voters SET lat = $1, lng = $2, geocode_source = $3, geocode_quality = $4 WHERE building_id = $5`,
	"get_geocode_cache": `SELECT key, lat, lng, source, quality, matched, cached_at, expires_at FROM geocode_cache WHERE key = $1 AND expires_at > now()`,
	"get_isochrone":     `SELECT geom FROM isochrone_cache WHERE key = $1`,
	"get_analysis":      `SELECT id, county, travel_type, travel_minutes, status, result, created_at, updated_at FROM analyses WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ballot_boxes (
	county   TEXT NOT NULL,
	name     TEXT NOT NULL,
	street   TEXT,
	city     TEXT,
	state    TEXT,
	zip_code TEXT,
	lat      DOUBLE PRECISION NOT NULL,
	lng      DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (county, name)
);

CREATE TABLE IF NOT EXISTS voters (
	county          TEXT NOT NULL,
	address_id      TEXT NOT NULL,
	building_id     TEXT NOT NULL,
	street          TEXT NOT NULL,
	city            TEXT NOT NULL,
	state           TEXT NOT NULL,
	zip_code        TEXT NOT NULL,
	unit            TEXT,
	voters          INTEGER NOT NULL DEFAULT 0,
	lat             DOUBLE PRECISION,
	lng             DOUBLE PRECISION,
	geocode_source  TEXT,
	geocode_quality TEXT,
	PRIMARY KEY (county, address_id)
);

CREATE INDEX IF NOT EXISTS idx_voters_building ON voters(building_id);
CREATE INDEX IF NOT EXISTS idx_voters_pending ON voters(county) WHERE lat IS NULL;

CREATE TABLE IF NOT EXISTS geocode_cache (
	key        TEXT PRIMARY KEY,
	lat        DOUBLE PRECISION,
	lng        DOUBLE PRECISION,
	source     TEXT,
	quality    TEXT,
	matched    BOOLEAN NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);

CREATE TABLE IF NOT EXISTS isochrone_cache (
	key        TEXT PRIMARY KEY,
	geom       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS boundaries (
	product    TEXT NOT NULL,
	geoid      TEXT NOT NULL,
	name       TEXT NOT NULL,
	state_fips TEXT NOT NULL,
	year       INTEGER NOT NULL,
	geom       BYTEA NOT NULL,
	min_lng    DOUBLE PRECISION NOT NULL,
	min_lat    DOUBLE PRECISION NOT NULL,
	max_lng    DOUBLE PRECISION NOT NULL,
	max_lat    DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (product, geoid)
);

CREATE INDEX IF NOT EXISTS idx_boundaries_name ON boundaries(product, state_fips, name);

CREATE TABLE IF NOT EXISTS boundary_loads (
	product      TEXT NOT NULL,
	year         INTEGER NOT NULL,
	record_count INTEGER NOT NULL,
	loaded_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (product, year)
);

CREATE TABLE IF NOT EXISTS analyses (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	county         TEXT NOT NULL,
	travel_type    TEXT NOT NULL,
	travel_minutes INTEGER NOT NULL,
	status         TEXT NOT NULL DEFAULT 'queued',
	result         JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_county ON analyses(county);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertBallotBoxes(ctx context.Context, county string, boxes []model.BallotBox) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var n int
	for _, b := range boxes {
		_, err := tx.Exec(ctx,
			`INSERT INTO ballot_boxes (county, name, street, city, state, zip_code, lat, lng)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (county, name) DO UPDATE SET
			   street = EXCLUDED.street, city = EXCLUDED.city, state = EXCLUDED.state,
			   zip_code = EXCLUDED.zip_code, lat = EXCLUDED.lat, lng = EXCLUDED.lng`,
			county, b.Name, b.Street, b.City, b.State, b.ZipCode, b.Lat, b.Lng,
		)
		if err != nil {
			return n, eris.Wrapf(err, "postgres: upsert ballot box %s", b.Name)
		}
		n++
	}
	return n, eris.Wrap(tx.Commit(ctx), "postgres: commit ballot boxes")
}

func (s *PostgresStore) ListBallotBoxes(ctx context.Context, county string) ([]model.BallotBox, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, street, city, state, zip_code, lat, lng FROM ballot_boxes
		 WHERE county = $1 ORDER BY name`,
		county,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ballot boxes")
	}
	defer rows.Close()

	var boxes []model.BallotBox
	for rows.Next() {
		var b model.BallotBox
		var street, city, state, zip *string
		if err := rows.Scan(&b.Name, &street, &city, &state, &zip, &b.Lat, &b.Lng); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ballot box")
		}
		b.Street, b.City, b.State, b.ZipCode = deref(street), deref(city), deref(state), deref(zip)
		boxes = append(boxes, b)
	}
	return boxes, eris.Wrap(rows.Err(), "postgres: list ballot boxes iterate")
}

func (s *PostgresStore) UpsertVoters(ctx context.Context, county string, addrs []model.VoterAddress) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var n int
	for _, a := range addrs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO voters (county, address_id, building_id, street, city, state, zip_code, unit, voters)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (county, address_id) DO UPDATE SET voters = EXCLUDED.voters`,
			county, a.AddressID, a.BuildingID, a.Street, a.City, a.State, a.ZipCode, a.Unit, a.Voters,
		); err != nil {
			return n, eris.Wrapf(err, "postgres: upsert voter address %s", a.AddressID)
		}
		n++
	}
	return n, eris.Wrap(tx.Commit(ctx), "postgres: commit voters")
}

func (s *PostgresStore) ListVoters(ctx context.Context, county string) ([]model.VoterAddress, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+voterColumns+` FROM voters WHERE county = $1 ORDER BY address_id`,
		county,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list voters")
	}
	defer rows.Close()
	return scanVotersPgx(rows)
}

func (s *PostgresStore) ListPendingGeocodes(ctx context.Context, county string, limit int) ([]model.VoterAddress, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (building_id) `+voterColumns+` FROM voters
		 WHERE county = $1 AND lat IS NULL
		 ORDER BY building_id, address_id LIMIT $2`,
		county, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending geocodes")
	}
	defer rows.Close()
	return scanVotersPgx(rows)
}

func (s *PostgresStore) UpdateGeocode(ctx context.Context, buildingID string, lat, lng float64, source, quality string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE voters SET lat = $1, lng = $2, geocode_source = $3, geocode_quality = $4 WHERE building_id = $5`,
		lat, lng, source, quality, buildingID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update geocode %s", buildingID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("building not found: %s", buildingID)
	}
	return nil
}

func (s *PostgresStore) VoterStats(ctx context.Context, county string) (*VoterStats, error) {
	var st VoterStats
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(voters), 0), COUNT(DISTINCT building_id),
		        COUNT(DISTINCT building_id) FILTER (WHERE lat IS NOT NULL)
		 FROM voters WHERE county = $1`,
		county,
	).Scan(&st.Voters, &st.Buildings, &st.Geocoded)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: voter stats")
	}
	return &st, nil
}

func (s *PostgresStore) GetGeocodeCache(ctx context.Context, key string) (*GeocodeCacheEntry, error) {
	var e GeocodeCacheEntry
	var source, quality *string
	err := s.pool.QueryRow(ctx,
		`SELECT key, lat, lng, source, quality, matched, cached_at, expires_at FROM geocode_cache
		 WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&e.Key, &e.Lat, &e.Lng, &source, &quality, &e.Matched, &e.CachedAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get geocode cache")
	}
	e.Source, e.Quality = deref(source), deref(quality)
	return &e, nil
}

func (s *PostgresStore) SetGeocodeCache(ctx context.Context, entry GeocodeCacheEntry, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (key, lat, lng, source, quality, matched, cached_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (key) DO UPDATE SET
		   lat = EXCLUDED.lat, lng = EXCLUDED.lng, source = EXCLUDED.source,
		   quality = EXCLUDED.quality, matched = EXCLUDED.matched,
		   cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		entry.Key, entry.Lat, entry.Lng, nilIfEmpty(entry.Source), nilIfEmpty(entry.Quality),
		entry.Matched, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set geocode cache")
}

func (s *PostgresStore) DeleteExpiredGeocodes(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM geocode_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired geocodes")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetIsochrone(ctx context.Context, key string) ([]byte, error) {
	var geom []byte
	err := s.pool.QueryRow(ctx,
		`SELECT geom FROM isochrone_cache WHERE key = $1`,
		key,
	).Scan(&geom)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get isochrone")
	}
	return geom, nil
}

func (s *PostgresStore) SetIsochrone(ctx context.Context, key string, geom []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO isochrone_cache (key, geom, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET geom = EXCLUDED.geom, created_at = EXCLUDED.created_at`,
		key, geom, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set isochrone")
}

func (s *PostgresStore) ReplaceBoundaries(ctx context.Context, product string, year int, boundaries []Boundary) (int, error) {
	if _, err := s.pool.Exec(ctx, `DELETE FROM boundaries WHERE product = $1`, product); err != nil {
		return 0, eris.Wrapf(err, "postgres: clear boundaries %s", product)
	}

	rows := make([][]any, 0, len(boundaries))
	for _, b := range boundaries {
		rows = append(rows, []any{
			product, b.GeoID, b.Name, b.StateFIPS, year, b.Geom,
			b.MinLng, b.MinLat, b.MaxLng, b.MaxLat,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "boundaries",
		[]string{"product", "geoid", "name", "state_fips", "year", "geom", "min_lng", "min_lat", "max_lng", "max_lat"},
		rows,
	)
	if err != nil {
		return int(n), eris.Wrapf(err, "postgres: copy boundaries %s", product)
	}
	return int(n), nil
}

func (s *PostgresStore) GetBoundaryByName(ctx context.Context, product, stateFIPS, name string) (*Boundary, error) {
	query := `SELECT product, geoid, name, state_fips, year, geom, min_lng, min_lat, max_lng, max_lat
	          FROM boundaries WHERE product = $1 AND LOWER(name) = LOWER($2)`
	args := []any{product, name}
	if stateFIPS != "" {
		query += fmt.Sprintf(` AND state_fips = $%d`, len(args)+1)
		args = append(args, stateFIPS)
	}

	var b Boundary
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&b.Product, &b.GeoID, &b.Name, &b.StateFIPS, &b.Year, &b.Geom,
		&b.MinLng, &b.MinLat, &b.MaxLng, &b.MaxLat,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get boundary %s/%s", product, name)
	}
	return &b, nil
}

func (s *PostgresStore) RecordBoundaryLoad(ctx context.Context, load BoundaryLoad) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO boundary_loads (product, year, record_count, loaded_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (product, year) DO UPDATE SET
		   record_count = EXCLUDED.record_count, loaded_at = EXCLUDED.loaded_at`,
		load.Product, load.Year, load.RecordCount, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: record boundary load")
}

func (s *PostgresStore) GetBoundaryLoad(ctx context.Context, product string, year int) (*BoundaryLoad, error) {
	var l BoundaryLoad
	err := s.pool.QueryRow(ctx,
		`SELECT product, year, record_count, loaded_at FROM boundary_loads WHERE product = $1 AND year = $2`,
		product, year,
	).Scan(&l.Product, &l.Year, &l.RecordCount, &l.LoadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get boundary load")
	}
	return &l, nil
}

func (s *PostgresStore) ListBoundaryLoads(ctx context.Context) ([]BoundaryLoad, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT product, year, record_count, loaded_at FROM boundary_loads ORDER BY product, year`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list boundary loads")
	}
	defer rows.Close()

	var loads []BoundaryLoad
	for rows.Next() {
		var l BoundaryLoad
		if err := rows.Scan(&l.Product, &l.Year, &l.RecordCount, &l.LoadedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan boundary load")
		}
		loads = append(loads, l)
	}
	return loads, eris.Wrap(rows.Err(), "postgres: list boundary loads iterate")
}

func (s *PostgresStore) CreateAnalysis(ctx context.Context, county string, travelType model.TravelType, travelMinutes int) (*model.Analysis, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO analyses (id, county, travel_type, travel_minutes, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, county, string(travelType), travelMinutes, string(model.AnalysisStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert analysis")
	}

	return &model.Analysis{
		ID:            id,
		County:        county,
		TravelType:    travelType,
		TravelMinutes: travelMinutes,
		Status:        model.AnalysisStatusQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *PostgresStore) UpdateAnalysisStatus(ctx context.Context, analysisID string, status model.AnalysisStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), analysisID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update analysis status %s", analysisID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("analysis not found: %s", analysisID)
	}
	return nil
}

func (s *PostgresStore) UpdateAnalysisResult(ctx context.Context, analysisID string, result *model.CoverageSummary) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.AnalysisStatusComplete), time.Now().UTC(), analysisID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update analysis result %s", analysisID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("analysis not found: %s", analysisID)
	}
	return nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, analysisID string) (*model.Analysis, error) {
	var a model.Analysis
	var resultNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, county, travel_type, travel_minutes, status, result, created_at, updated_at
		 FROM analyses WHERE id = $1`,
		analysisID,
	).Scan(&a.ID, &a.County, &a.TravelType, &a.TravelMinutes, &a.Status, &resultNull, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.New("analysis not found")
		}
		return nil, eris.Wrapf(err, "postgres: get analysis %s", analysisID)
	}

	if resultNull != nil {
		a.Result = &model.CoverageSummary{}
		if err := json.Unmarshal(*resultNull, a.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &a, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error) {
	query := `SELECT id, county, travel_type, travel_minutes, status, result, created_at, updated_at
	          FROM analyses WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.County != "" {
		query += fmt.Sprintf(` AND county = $%d`, argIdx)
		args = append(args, filter.County)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var analyses []model.Analysis
	for rows.Next() {
		var a model.Analysis
		var resultNull *[]byte

		if err := rows.Scan(&a.ID, &a.County, &a.TravelType, &a.TravelMinutes, &a.Status, &resultNull, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		if resultNull != nil {
			a.Result = &model.CoverageSummary{}
			if err := json.Unmarshal(*resultNull, a.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		analyses = append(analyses, a)
	}
	return analyses, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanVotersPgx(rows pgx.Rows) ([]model.VoterAddress, error) {
	var addrs []model.VoterAddress
	for rows.Next() {
		var v model.VoterAddress
		var unit, source, quality *string
		if err := rows.Scan(&v.AddressID, &v.BuildingID, &v.Street, &v.City, &v.State, &v.ZipCode,
			&unit, &v.Voters, &v.Lat, &v.Lng, &source, &quality); err != nil {
			return nil, eris.Wrap(err, "postgres: scan voter address")
		}
		v.Unit, v.Source, v.Quality = deref(unit), deref(source), deref(quality)
		addrs = append(addrs, v)
	}
	return addrs, eris.Wrap(rows.Err(), "postgres: voters iterate")
}
