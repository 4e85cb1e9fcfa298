package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/config"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func ptrFloat(f float64) *float64 { return &f }

func testVoter(street, unit string, voters int) model.VoterAddress {
	return model.VoterAddress{
		AddressID:  model.AddressID(street, "Seattle", "WA", "98101", unit),
		BuildingID: model.BuildingID(street, "Seattle", "WA", "98101"),
		Street:     street,
		City:       "Seattle",
		State:      "WA",
		ZipCode:    "98101",
		Unit:       unit,
		Voters:     voters,
	}
}

func TestSQLiteBallotBoxes(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	boxes := []model.BallotBox{
		{Name: "Library", Street: "1000 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104", Lat: 47.6067, Lng: -122.3325},
		{Name: "City Hall", Street: "600 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104", Lat: 47.6038, Lng: -122.3301},
	}
	n, err := st.UpsertBallotBoxes(ctx, "King County", boxes)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := st.ListBallotBoxes(ctx, "King County")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "City Hall", got[0].Name)
	assert.Equal(t, "Library", got[1].Name)
	assert.Equal(t, "600 4th Ave", got[0].Street)

	// Re-import moves a box. Same name, new coordinates.
	boxes[1].Lat, boxes[1].Lng = 47.61, -122.34
	n, err = st.UpsertBallotBoxes(ctx, "King County", boxes)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err = st.ListBallotBoxes(ctx, "King County")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 47.61, got[0].Lat, 1e-9)

	other, err := st.ListBallotBoxes(ctx, "Pierce County")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteVoters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	addrs := []model.VoterAddress{
		testVoter("100 Main St", "", 3),
		testVoter("200 Pine St", "Apt 1", 2),
		testVoter("200 Pine St", "Apt 2", 4),
	}
	n, err := st.UpsertVoters(ctx, "King County", addrs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := st.ListVoters(ctx, "King County")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, v := range got {
		assert.False(t, v.Geocoded())
	}

	// Conflicting re-import updates the voter count only.
	addrs[0].Voters = 5
	_, err = st.UpsertVoters(ctx, "King County", addrs[:1])
	require.NoError(t, err)

	stats, err := st.VoterStats(ctx, "King County")
	require.NoError(t, err)
	assert.Equal(t, 11, stats.Voters)
	assert.Equal(t, 2, stats.Buildings)
	assert.Equal(t, 0, stats.Geocoded)
}

func TestSQLiteGeocodeLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	addrs := []model.VoterAddress{
		testVoter("100 Main St", "", 3),
		testVoter("200 Pine St", "Apt 1", 2),
		testVoter("200 Pine St", "Apt 2", 4),
	}
	_, err := st.UpsertVoters(ctx, "King County", addrs)
	require.NoError(t, err)

	// One row per building, not per unit.
	pending, err := st.ListPendingGeocodes(ctx, "King County", 100)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	buildingID := addrs[1].BuildingID
	require.NoError(t, st.UpdateGeocode(ctx, buildingID, 47.61, -122.33, "census", "rooftop"))

	// Both units of the building got the coordinates.
	voters, err := st.ListVoters(ctx, "King County")
	require.NoError(t, err)
	var geocoded int
	for _, v := range voters {
		if v.Geocoded() {
			geocoded++
			assert.Equal(t, "census", v.Source)
			assert.Equal(t, "rooftop", v.Quality)
			assert.InDelta(t, 47.61, *v.Lat, 1e-9)
		}
	}
	assert.Equal(t, 2, geocoded)

	pending, err = st.ListPendingGeocodes(ctx, "King County", 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, addrs[0].BuildingID, pending[0].BuildingID)

	stats, err := st.VoterStats(ctx, "King County")
	require.NoError(t, err)
	assert.Equal(t, 9, stats.Voters)
	assert.Equal(t, 2, stats.Buildings)
	assert.Equal(t, 1, stats.Geocoded)

	err = st.UpdateGeocode(ctx, "no-such-building", 0, 0, "census", "rooftop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "building not found")
}

func TestSQLiteGeocodeCache(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := GeocodeCacheEntry{
		Key:     "abc123",
		Lat:     ptrFloat(47.6),
		Lng:     ptrFloat(-122.3),
		Source:  "census",
		Quality: "rooftop",
		Matched: true,
	}
	require.NoError(t, st.SetGeocodeCache(ctx, entry, time.Hour))

	got, err := st.GetGeocodeCache(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Matched)
	assert.Equal(t, "census", got.Source)
	require.NotNil(t, got.Lat)
	assert.InDelta(t, 47.6, *got.Lat, 1e-9)

	miss, err := st.GetGeocodeCache(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestSQLiteGeocodeCacheNegativeEntry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetGeocodeCache(ctx, GeocodeCacheEntry{Key: "nomatch", Matched: false}, time.Hour))

	got, err := st.GetGeocodeCache(ctx, "nomatch")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Matched)
	assert.Nil(t, got.Lat)
	assert.Nil(t, got.Lng)
	assert.Empty(t, got.Source)
}

func TestSQLiteGeocodeCacheExpiry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetGeocodeCache(ctx, GeocodeCacheEntry{Key: "stale", Matched: true, Lat: ptrFloat(1), Lng: ptrFloat(2)}, -time.Hour))
	require.NoError(t, st.SetGeocodeCache(ctx, GeocodeCacheEntry{Key: "fresh", Matched: true, Lat: ptrFloat(3), Lng: ptrFloat(4)}, time.Hour))

	got, err := st.GetGeocodeCache(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := st.DeleteExpiredGeocodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = st.GetGeocodeCache(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSQLiteIsochroneCache(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	miss, err := st.GetIsochrone(ctx, "Library_-_driving_-_15_-_Tuesday_-_1800")
	require.NoError(t, err)
	assert.Nil(t, miss)

	geom := []byte{0x01, 0x06, 0x00, 0x00, 0x20}
	require.NoError(t, st.SetIsochrone(ctx, "Library_-_driving_-_15_-_Tuesday_-_1800", geom))

	got, err := st.GetIsochrone(ctx, "Library_-_driving_-_15_-_Tuesday_-_1800")
	require.NoError(t, err)
	assert.Equal(t, geom, got)

	// Overwrite replaces the geometry.
	require.NoError(t, st.SetIsochrone(ctx, "Library_-_driving_-_15_-_Tuesday_-_1800", []byte{0xff}))
	got, err = st.GetIsochrone(ctx, "Library_-_driving_-_15_-_Tuesday_-_1800")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff}, got)
}

func TestSQLiteBoundaries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rows := []Boundary{
		{GeoID: "53033", Name: "King County", StateFIPS: "53", Geom: []byte{0x01}, MinLng: -122.5, MinLat: 47.0, MaxLng: -121.0, MaxLat: 47.8},
		{GeoID: "53053", Name: "Pierce County", StateFIPS: "53", Geom: []byte{0x02}, MinLng: -122.8, MinLat: 46.7, MaxLng: -121.3, MaxLat: 47.4},
	}
	n, err := st.ReplaceBoundaries(ctx, "county", 2024, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := st.GetBoundaryByName(ctx, "county", "53", "king county")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "53033", got.GeoID)
	assert.Equal(t, 2024, got.Year)
	assert.InDelta(t, -122.5, got.MinLng, 1e-9)

	// Empty state FIPS matches across states.
	got, err = st.GetBoundaryByName(ctx, "county", "", "Pierce County")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "53053", got.GeoID)

	miss, err := st.GetBoundaryByName(ctx, "county", "53", "Nowhere County")
	require.NoError(t, err)
	assert.Nil(t, miss)

	// Replace wipes prior rows for the product.
	n, err = st.ReplaceBoundaries(ctx, "county", 2025, rows[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	miss, err = st.GetBoundaryByName(ctx, "county", "53", "Pierce County")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestSQLiteBoundaryLoads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	miss, err := st.GetBoundaryLoad(ctx, "county", 2024)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, st.RecordBoundaryLoad(ctx, BoundaryLoad{Product: "county", Year: 2024, RecordCount: 3235}))
	require.NoError(t, st.RecordBoundaryLoad(ctx, BoundaryLoad{Product: "place", Year: 2024, RecordCount: 120}))
	require.NoError(t, st.RecordBoundaryLoad(ctx, BoundaryLoad{Product: "county", Year: 2024, RecordCount: 3234}))

	got, err := st.GetBoundaryLoad(ctx, "county", 2024)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3234, got.RecordCount)
	assert.WithinDuration(t, time.Now(), got.LoadedAt, time.Minute)

	loads, err := st.ListBoundaryLoads(ctx)
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, "county", loads[0].Product)
	assert.Equal(t, "place", loads[1].Product)
}

func TestSQLiteAnalysisLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateAnalysis(ctx, "King County", model.TravelDriving, 15)
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	assert.Equal(t, model.AnalysisStatusQueued, a.Status)

	require.NoError(t, st.UpdateAnalysisStatus(ctx, a.ID, model.AnalysisStatusRunning))

	summary := &model.CoverageSummary{
		TotalVoters:    100,
		TotalBuildings: 40,
		WithinVoters:   75,
		OutsideVoters:  25,
		WithinShare:    0.75,
	}
	require.NoError(t, st.UpdateAnalysisResult(ctx, a.ID, summary))

	got, err := st.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisStatusComplete, got.Status)
	assert.Equal(t, "King County", got.County)
	assert.Equal(t, model.TravelDriving, got.TravelType)
	assert.Equal(t, 15, got.TravelMinutes)
	require.NotNil(t, got.Result)
	assert.Equal(t, 75, got.Result.WithinVoters)
	assert.InDelta(t, 0.75, got.Result.WithinShare, 1e-9)

	_, err = st.GetAnalysis(ctx, "no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis not found")

	err = st.UpdateAnalysisStatus(ctx, "no-such-id", model.AnalysisStatusFailed)
	require.Error(t, err)
}

func TestSQLiteListAnalyses(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	king, err := st.CreateAnalysis(ctx, "King County", model.TravelDriving, 15)
	require.NoError(t, err)
	_, err = st.CreateAnalysis(ctx, "Pierce County", model.TravelWalking, 30)
	require.NoError(t, err)
	require.NoError(t, st.UpdateAnalysisStatus(ctx, king.ID, model.AnalysisStatusFailed))

	all, err := st.ListAnalyses(ctx, AnalysisFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byCounty, err := st.ListAnalyses(ctx, AnalysisFilter{County: "King County"})
	require.NoError(t, err)
	require.Len(t, byCounty, 1)
	assert.Equal(t, king.ID, byCounty[0].ID)

	byStatus, err := st.ListAnalyses(ctx, AnalysisFilter{Status: model.AnalysisStatusFailed})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, king.ID, byStatus[0].ID)

	limited, err := st.ListAnalyses(ctx, AnalysisFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := st.ListAnalyses(ctx, AnalysisFilter{County: "Thurston County"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, config.StoreConfig{Path: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	_, ok := st.(*SQLiteStore)
	assert.True(t, ok)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
