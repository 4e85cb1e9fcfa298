package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ballot_boxes (
	county   TEXT NOT NULL,
	name     TEXT NOT NULL,
	street   TEXT,
	city     TEXT,
	state    TEXT,
	zip_code TEXT,
	lat      REAL NOT NULL,
	lng      REAL NOT NULL,
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
	lat             REAL,
	lng             REAL,
	geocode_source  TEXT,
	geocode_quality TEXT,
	PRIMARY KEY (county, address_id)
);

CREATE INDEX IF NOT EXISTS idx_voters_building ON voters(building_id);
CREATE INDEX IF NOT EXISTS idx_voters_pending ON voters(county) WHERE lat IS NULL;

CREATE TABLE IF NOT EXISTS geocode_cache (
	key        TEXT PRIMARY KEY,
	lat        REAL,
	lng        REAL,
	source     TEXT,
	quality    TEXT,
	matched    INTEGER NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_expires_at ON geocode_cache(expires_at);

CREATE TABLE IF NOT EXISTS isochrone_cache (
	key        TEXT PRIMARY KEY,
	geom       BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS boundaries (
	product    TEXT NOT NULL,
	geoid      TEXT NOT NULL,
	name       TEXT NOT NULL,
	state_fips TEXT NOT NULL,
	year       INTEGER NOT NULL,
	geom       BLOB NOT NULL,
	min_lng    REAL NOT NULL,
	min_lat    REAL NOT NULL,
	max_lng    REAL NOT NULL,
	max_lat    REAL NOT NULL,
	PRIMARY KEY (product, geoid)
);

CREATE INDEX IF NOT EXISTS idx_boundaries_name ON boundaries(product, state_fips, name);

CREATE TABLE IF NOT EXISTS boundary_loads (
	product      TEXT NOT NULL,
	year         INTEGER NOT NULL,
	record_count INTEGER NOT NULL,
	loaded_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (product, year)
);

CREATE TABLE IF NOT EXISTS analyses (
	id             TEXT PRIMARY KEY,
	county         TEXT NOT NULL,
	travel_type    TEXT NOT NULL,
	travel_minutes INTEGER NOT NULL,
	status         TEXT NOT NULL DEFAULT 'queued',
	result         TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analyses_county ON analyses(county);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertBallotBoxes(ctx context.Context, county string, boxes []model.BallotBox) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int
	for _, b := range boxes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ballot_boxes (county, name, street, city, state, zip_code, lat, lng)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (county, name) DO UPDATE SET
			   street = excluded.street, city = excluded.city, state = excluded.state,
			   zip_code = excluded.zip_code, lat = excluded.lat, lng = excluded.lng`,
			county, b.Name, b.Street, b.City, b.State, b.ZipCode, b.Lat, b.Lng,
		)
		if err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert ballot box %s", b.Name)
		}
		n++
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: commit ballot boxes")
}

func (s *SQLiteStore) ListBallotBoxes(ctx context.Context, county string) ([]model.BallotBox, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, street, city, state, zip_code, lat, lng FROM ballot_boxes
		 WHERE county = ? ORDER BY name`,
		county,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ballot boxes")
	}
	defer rows.Close() //nolint:errcheck

	var boxes []model.BallotBox
	for rows.Next() {
		var b model.BallotBox
		var street, city, state, zip sql.NullString
		if err := rows.Scan(&b.Name, &street, &city, &state, &zip, &b.Lat, &b.Lng); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ballot box")
		}
		b.Street, b.City, b.State, b.ZipCode = street.String, city.String, state.String, zip.String
		boxes = append(boxes, b)
	}
	return boxes, eris.Wrap(rows.Err(), "sqlite: list ballot boxes iterate")
}

func (s *SQLiteStore) UpsertVoters(ctx context.Context, county string, addrs []model.VoterAddress) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO voters (county, address_id, building_id, street, city, state, zip_code, unit, voters)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (county, address_id) DO UPDATE SET voters = excluded.voters`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare voter insert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int
	for _, a := range addrs {
		if _, err := stmt.ExecContext(ctx,
			county, a.AddressID, a.BuildingID, a.Street, a.City, a.State, a.ZipCode, a.Unit, a.Voters,
		); err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert voter address %s", a.AddressID)
		}
		n++
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: commit voters")
}

const voterColumns = `address_id, building_id, street, city, state, zip_code, unit, voters, lat, lng, geocode_source, geocode_quality`

func (s *SQLiteStore) ListVoters(ctx context.Context, county string) ([]model.VoterAddress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+voterColumns+` FROM voters WHERE county = ? ORDER BY address_id`,
		county,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list voters")
	}
	defer rows.Close() //nolint:errcheck
	return scanVoters(rows)
}

func (s *SQLiteStore) ListPendingGeocodes(ctx context.Context, county string, limit int) ([]model.VoterAddress, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+voterColumns+` FROM voters
		 WHERE county = ? AND lat IS NULL
		 GROUP BY building_id ORDER BY address_id LIMIT ?`,
		county, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending geocodes")
	}
	defer rows.Close() //nolint:errcheck
	return scanVoters(rows)
}

func (s *SQLiteStore) UpdateGeocode(ctx context.Context, buildingID string, lat, lng float64, source, quality string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE voters SET lat = ?, lng = ?, geocode_source = ?, geocode_quality = ? WHERE building_id = ?`,
		lat, lng, source, quality, buildingID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update geocode %s", buildingID)
	}
	return checkRowsAffected(res, "building", buildingID)
}

func (s *SQLiteStore) VoterStats(ctx context.Context, county string) (*VoterStats, error) {
	var st VoterStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(voters), 0), COUNT(DISTINCT building_id),
		        COUNT(DISTINCT CASE WHEN lat IS NOT NULL THEN building_id END)
		 FROM voters WHERE county = ?`,
		county,
	).Scan(&st.Voters, &st.Buildings, &st.Geocoded)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: voter stats")
	}
	return &st, nil
}

func (s *SQLiteStore) GetGeocodeCache(ctx context.Context, key string) (*GeocodeCacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, lat, lng, source, quality, matched, cached_at, expires_at FROM geocode_cache
		 WHERE key = ? AND expires_at > datetime('now')`,
		key,
	)

	var e GeocodeCacheEntry
	var lat, lng sql.NullFloat64
	var source, quality sql.NullString
	err := row.Scan(&e.Key, &lat, &lng, &source, &quality, &e.Matched, &e.CachedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get geocode cache")
	}
	if lat.Valid {
		e.Lat = &lat.Float64
	}
	if lng.Valid {
		e.Lng = &lng.Float64
	}
	e.Source, e.Quality = source.String, quality.String
	return &e, nil
}

func (s *SQLiteStore) SetGeocodeCache(ctx context.Context, entry GeocodeCacheEntry, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (key, lat, lng, source, quality, matched, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
		   lat = excluded.lat, lng = excluded.lng, source = excluded.source,
		   quality = excluded.quality, matched = excluded.matched,
		   cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		entry.Key, entry.Lat, entry.Lng, nilIfEmpty(entry.Source), nilIfEmpty(entry.Quality),
		entry.Matched, now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set geocode cache")
}

func (s *SQLiteStore) DeleteExpiredGeocodes(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM geocode_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired geocodes")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) GetIsochrone(ctx context.Context, key string) ([]byte, error) {
	var geom []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT geom FROM isochrone_cache WHERE key = ?`,
		key,
	).Scan(&geom)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get isochrone")
	}
	return geom, nil
}

func (s *SQLiteStore) SetIsochrone(ctx context.Context, key string, geom []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO isochrone_cache (key, geom, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET geom = excluded.geom, created_at = excluded.created_at`,
		key, geom, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set isochrone")
}

func (s *SQLiteStore) ReplaceBoundaries(ctx context.Context, product string, year int, rows []Boundary) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM boundaries WHERE product = ?`, product); err != nil {
		return 0, eris.Wrapf(err, "sqlite: clear boundaries %s", product)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO boundaries (product, geoid, name, state_fips, year, geom, min_lng, min_lat, max_lng, max_lat)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare boundary insert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int
	for _, b := range rows {
		if _, err := stmt.ExecContext(ctx,
			product, b.GeoID, b.Name, b.StateFIPS, year, b.Geom,
			b.MinLng, b.MinLat, b.MaxLng, b.MaxLat,
		); err != nil {
			return n, eris.Wrapf(err, "sqlite: insert boundary %s", b.GeoID)
		}
		n++
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: commit boundaries")
}

func (s *SQLiteStore) GetBoundaryByName(ctx context.Context, product, stateFIPS, name string) (*Boundary, error) {
	query := `SELECT product, geoid, name, state_fips, year, geom, min_lng, min_lat, max_lng, max_lat
	          FROM boundaries WHERE product = ? AND LOWER(name) = LOWER(?)`
	args := []any{product, name}
	if stateFIPS != "" {
		query += ` AND state_fips = ?`
		args = append(args, stateFIPS)
	}

	var b Boundary
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&b.Product, &b.GeoID, &b.Name, &b.StateFIPS, &b.Year, &b.Geom,
		&b.MinLng, &b.MinLat, &b.MaxLng, &b.MaxLat,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get boundary %s/%s", product, name)
	}
	return &b, nil
}

func (s *SQLiteStore) RecordBoundaryLoad(ctx context.Context, load BoundaryLoad) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO boundary_loads (product, year, record_count, loaded_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (product, year) DO UPDATE SET
		   record_count = excluded.record_count, loaded_at = excluded.loaded_at`,
		load.Product, load.Year, load.RecordCount, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: record boundary load")
}

func (s *SQLiteStore) GetBoundaryLoad(ctx context.Context, product string, year int) (*BoundaryLoad, error) {
	var l BoundaryLoad
	err := s.db.QueryRowContext(ctx,
		`SELECT product, year, record_count, loaded_at FROM boundary_loads WHERE product = ? AND year = ?`,
		product, year,
	).Scan(&l.Product, &l.Year, &l.RecordCount, &l.LoadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get boundary load")
	}
	return &l, nil
}

func (s *SQLiteStore) ListBoundaryLoads(ctx context.Context) ([]BoundaryLoad, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product, year, record_count, loaded_at FROM boundary_loads ORDER BY product, year`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list boundary loads")
	}
	defer rows.Close() //nolint:errcheck

	var loads []BoundaryLoad
	for rows.Next() {
		var l BoundaryLoad
		if err := rows.Scan(&l.Product, &l.Year, &l.RecordCount, &l.LoadedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan boundary load")
		}
		loads = append(loads, l)
	}
	return loads, eris.Wrap(rows.Err(), "sqlite: list boundary loads iterate")
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, county string, travelType model.TravelType, travelMinutes int) (*model.Analysis, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, county, travel_type, travel_minutes, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, county, string(travelType), travelMinutes, string(model.AnalysisStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert analysis")
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

func (s *SQLiteStore) UpdateAnalysisStatus(ctx context.Context, analysisID string, status model.AnalysisStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), analysisID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update analysis status %s", analysisID)
	}
	return checkRowsAffected(res, "analysis", analysisID)
}

func (s *SQLiteStore) UpdateAnalysisResult(ctx context.Context, analysisID string, result *model.CoverageSummary) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.AnalysisStatusComplete), time.Now().UTC(), analysisID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update analysis result %s", analysisID)
	}
	return checkRowsAffected(res, "analysis", analysisID)
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, analysisID string) (*model.Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, county, travel_type, travel_minutes, status, result, created_at, updated_at
		 FROM analyses WHERE id = ?`,
		analysisID,
	)
	return scanAnalysis(row)
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error) {
	query := `SELECT id, county, travel_type, travel_minutes, status, result, created_at, updated_at
	          FROM analyses WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.County != "" {
		query += ` AND county = ?`
		args = append(args, filter.County)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close() //nolint:errcheck

	var analyses []model.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *a)
	}
	return analyses, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scannable) (*model.Analysis, error) {
	var a model.Analysis
	var resultJSON sql.NullString

	err := row.Scan(&a.ID, &a.County, &a.TravelType, &a.TravelMinutes, &a.Status, &resultJSON, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("analysis not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan analysis")
	}

	if resultJSON.Valid {
		a.Result = &model.CoverageSummary{}
		if err := json.Unmarshal([]byte(resultJSON.String), a.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &a, nil
}

func scanVoters(rows *sql.Rows) ([]model.VoterAddress, error) {
	var addrs []model.VoterAddress
	for rows.Next() {
		var v model.VoterAddress
		var unit, source, quality sql.NullString
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&v.AddressID, &v.BuildingID, &v.Street, &v.City, &v.State, &v.ZipCode,
			&unit, &v.Voters, &lat, &lng, &source, &quality); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan voter address")
		}
		v.Unit, v.Source, v.Quality = unit.String, source.String, quality.String
		if lat.Valid {
			v.Lat = &lat.Float64
		}
		if lng.Valid {
			v.Lng = &lng.Float64
		}
		addrs = append(addrs, v)
	}
	return addrs, eris.Wrap(rows.Err(), "sqlite: voters iterate")
}
