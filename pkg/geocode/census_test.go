package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCensusOneLine_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, censusBenchmark, r.URL.Query().Get("benchmark"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"result": {
				"addressMatches": [{
					"coordinates": {"x": -122.3321, "y": 47.6062},
					"matchedAddress": "600 4TH AVE, SEATTLE, WA, 98104"
				}]
			}
		}`)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
	}

	result, err := g.geocodeCensus(context.Background(), AddressInput{
		Street: "600 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104",
	})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 47.6062, result.Latitude, 0.0001)
	assert.InDelta(t, -122.3321, result.Longitude, 0.0001)
	assert.Equal(t, "census", result.Source)
	assert.Equal(t, "rooftop", result.Quality)
}

func TestCensusOneLine_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"result": {"addressMatches": []}}`)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
	}

	result, err := g.geocodeCensus(context.Background(), AddressInput{
		Street: "123 Nowhere St", City: "Faketown", State: "XX", ZipCode: "00000",
	})
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, "census", result.Source)
}

func TestCensusOneLine_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusOneLineURL),
		limiter:    newTestLimiter(),
	}

	_, err := g.geocodeCensus(context.Background(), AddressInput{Street: "600 4th Ave"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestCensusBatch_MixedResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, censusBenchmark, r.FormValue("benchmark"))

		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, `"a","600 4th Ave, Seattle, WA, 98104","Match","Exact","600 4TH AVE, SEATTLE, WA, 98104","-122.3321,47.6062","123","L"
"b","123 Nowhere St, Faketown, XX, 00000","No_Match"`)
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, censusBatchURL),
		limiter:    newTestLimiter(),
	}

	addrs := []AddressInput{
		{ID: "a", Street: "600 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104"},
		{ID: "b", Street: "123 Nowhere St", City: "Faketown", State: "XX", ZipCode: "00000"},
	}

	results, err := g.batchGeocodeCensus(context.Background(), addrs)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Matched)
	assert.InDelta(t, 47.6062, results[0].Latitude, 0.0001)
	assert.Equal(t, "rooftop", results[0].Quality)

	assert.False(t, results[1].Matched)
}

func TestParseCensusBatchResponse_NonExact(t *testing.T) {
	body := `"0","input addr","Match","Non_Exact","matched","-73.9857,40.7484","999","R"
"1","input addr","No_Match"`

	idToIdx := map[string]int{"0": 0, "1": 1}
	results, err := parseCensusBatchResponse(body, idToIdx, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Matched)
	assert.Equal(t, "range", results[0].Quality)
	assert.InDelta(t, 40.7484, results[0].Latitude, 0.0001)
	assert.InDelta(t, -73.9857, results[0].Longitude, 0.0001)

	assert.False(t, results[1].Matched)
}

func TestCensusBatchQuality(t *testing.T) {
	assert.Equal(t, "rooftop", censusBatchQuality("Exact"))
	assert.Equal(t, "rooftop", censusBatchQuality("exact"))
	assert.Equal(t, "range", censusBatchQuality("Non_Exact"))
	assert.Equal(t, "range", censusBatchQuality("anything else"))
}

func TestParseCensusCoords(t *testing.T) {
	lon, lat, err := parseCensusCoords("-122.3321,47.6062")
	require.NoError(t, err)
	assert.InDelta(t, -122.3321, lon, 0.0001)
	assert.InDelta(t, 47.6062, lat, 0.0001)

	_, _, err = parseCensusCoords("garbage")
	require.Error(t, err)
}

func TestFormatOneLine(t *testing.T) {
	tests := []struct {
		addr     AddressInput
		expected string
	}{
		{AddressInput{Street: "600 4th Ave", City: "Seattle", State: "WA", ZipCode: "98104"},
			"600 4th Ave, Seattle, WA, 98104"},
		{AddressInput{Street: "600 4th Ave", City: "Seattle"},
			"600 4th Ave, Seattle"},
		{AddressInput{Street: " 600 4th Ave ", State: "WA"},
			"600 4th Ave, WA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatOneLine(tt.addr))
	}
}

func TestSplitCSVLine_QuotedCommas(t *testing.T) {
	fields := splitCSVLine(`"0","600 4th Ave, Seattle, WA","Match"`)
	require.Len(t, fields, 3)
	assert.Equal(t, `"600 4th Ave, Seattle, WA"`, fields[1])
}
