package kepler

import (
	"fmt"

	"github.com/twpayne/go-geom"
	geojson "github.com/twpayne/go-geom/encoding/geojson"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/boundary"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/store"
)

// MapFilter pre-selects values of a dataset column.
type MapFilter struct {
	ColName      string
	DefaultValue []string
}

// dataset pairs a layer title with its GeoJSON features.
type dataset struct {
	name       string
	collection *geojson.FeatureCollection
}

// Map assembles a Kepler.gl county map. Layers added later are inserted in
// front so ballot boxes render above isochrones, which render above voter
// addresses and the county outline.
type Map struct {
	config   Config
	datasets []dataset
}

// NewCountyMap creates a map centered on the county boundary with the
// boundary outline as the base layer.
func NewCountyMap(county *store.Boundary, style string, zoom int) (*Map, error) {
	mp, err := boundary.DecodeMultiPolygon(county.Geom)
	if err != nil {
		return nil, err
	}

	if style == "" {
		style = "dark"
	}
	if zoom <= 0 {
		zoom = 9
	}

	m := &Map{
		config: Config{
			VisState: VisState{
				Filters: []Filter{},
				Layers: []Layer{{
					ID:   LayerCountyBoundary,
					Type: "geojson",
					Config: LayerConfig{
						DataID:         LayerCountyBoundary,
						Label:          LayerCountyBoundary,
						Color:          RGB{255, 255, 255},
						HighlightColor: defaultHighlightColor,
						Columns:        GeojsonColumns{Geojson: "geometry"},
						IsVisible:      true,
						VisConfig:      countyBoundaryVisConfig(),
					},
				}},
				InteractionConfig: InteractionConfig{
					Tooltip: Tooltip{
						FieldsToShow: map[string][]Field{
							LayerCountyBoundary: {{Name: "geoid"}, {Name: "name"}},
						},
						Enabled: true,
					},
				},
			},
			MapState: MapState{
				Latitude:  (county.MinLat + county.MaxLat) / 2,
				Longitude: (county.MinLng + county.MaxLng) / 2,
				Zoom:      zoom,
			},
			MapStyle: MapStyle{
				StyleType:          style,
				VisibleLayerGroups: defaultVisibleLayerGroups(),
			},
		},
	}

	m.datasets = append(m.datasets, dataset{
		name: LayerCountyBoundary,
		collection: &geojson.FeatureCollection{Features: []*geojson.Feature{{
			Geometry: mp,
			Properties: map[string]any{
				"geoid": county.GeoID,
				"name":  county.Name,
			},
		}}},
	})
	return m, nil
}

// insertLayer prepends a layer and registers its tooltip fields.
func (m *Map) insertLayer(l Layer, tooltipCols []string) {
	m.config.VisState.Layers = append([]Layer{l}, m.config.VisState.Layers...)
	fields := make([]Field, 0, len(tooltipCols))
	for _, col := range tooltipCols {
		fields = append(fields, Field{Name: col})
	}
	m.config.VisState.InteractionConfig.Tooltip.FieldsToShow[l.Config.DataID] = fields
}

// AddVoterAddresses adds geocoded voter buildings as a point layer.
func (m *Map) AddVoterAddresses(voters []model.VoterAddress) {
	features := make([]*geojson.Feature, 0, len(voters))
	for _, v := range voters {
		if !v.Geocoded() {
			continue
		}
		pt := geom.NewPointFlat(geom.XY, []float64{*v.Lng, *v.Lat}).SetSRID(4326)
		features = append(features, &geojson.Feature{
			Geometry: pt,
			Properties: map[string]any{
				"street":   v.Street,
				"city":     v.City,
				"zip_code": v.ZipCode,
				"voters":   v.Voters,
			},
		})
	}

	m.insertLayer(Layer{
		ID:   LayerVoterAddress,
		Type: "geojson",
		Config: LayerConfig{
			DataID:         LayerVoterAddress,
			Label:          LayerVoterAddress,
			Color:          RGB{207, 216, 244},
			HighlightColor: defaultHighlightColor,
			Columns:        GeojsonColumns{Geojson: "geometry"},
			IsVisible:      true,
			VisConfig:      voterAddressVisConfig(),
		},
	}, []string{"street", "city", "zip_code", "voters"})

	m.datasets = append(m.datasets, dataset{
		name:       LayerVoterAddress,
		collection: &geojson.FeatureCollection{Features: features},
	})
}

// AddTravelTimeRadius adds isochrone polygons, one feature per ballot box.
func (m *Map) AddTravelTimeRadius(isochrones map[string]*geom.MultiPolygon, travelMinutes int, travelType model.TravelType, filters []MapFilter) {
	features := make([]*geojson.Feature, 0, len(isochrones))
	label := fmt.Sprintf("%d min %s", travelMinutes, travelType)
	for name, mp := range isochrones {
		features = append(features, &geojson.Feature{
			Geometry: mp,
			Properties: map[string]any{
				"ballot_box":  name,
				"travel_time": label,
			},
		})
	}

	m.insertLayer(Layer{
		ID:   LayerTravelTimeRadius,
		Type: "geojson",
		Config: LayerConfig{
			DataID:         LayerTravelTimeRadius,
			Label:          LayerTravelTimeRadius,
			Color:          RGB{227, 151, 10},
			HighlightColor: defaultHighlightColor,
			Columns:        GeojsonColumns{Geojson: "geometry"},
			IsVisible:      true,
			VisConfig:      travelTimeRadiusVisConfig(),
		},
	}, []string{"ballot_box", "travel_time"})

	for _, f := range filters {
		m.config.VisState.Filters = append(m.config.VisState.Filters, Filter{
			DataID: []string{LayerTravelTimeRadius},
			ID:     LayerTravelTimeRadius,
			Name:   []string{f.ColName},
			Type:   "multiSelect",
			Value:  f.DefaultValue,
		})
	}

	m.datasets = append(m.datasets, dataset{
		name:       LayerTravelTimeRadius,
		collection: &geojson.FeatureCollection{Features: features},
	})
}

// AddBallotBoxes adds ballot box locations as the topmost layer.
func (m *Map) AddBallotBoxes(boxes []model.BallotBox) {
	features := make([]*geojson.Feature, 0, len(boxes))
	for _, b := range boxes {
		pt := geom.NewPointFlat(geom.XY, []float64{b.Lng, b.Lat}).SetSRID(4326)
		features = append(features, &geojson.Feature{
			Geometry: pt,
			Properties: map[string]any{
				"name":   b.Name,
				"street": b.Street,
				"city":   b.City,
			},
		})
	}

	m.insertLayer(Layer{
		ID:   LayerBallotBox,
		Type: "geojson",
		Config: LayerConfig{
			DataID:         LayerBallotBox,
			Label:          LayerBallotBox,
			Color:          RGB{255, 255, 255},
			HighlightColor: defaultHighlightColor,
			Columns:        GeojsonColumns{Geojson: "geometry"},
			IsVisible:      true,
			VisConfig:      ballotBoxVisConfig(),
		},
	}, []string{"name", "street", "city"})

	m.datasets = append(m.datasets, dataset{
		name:       LayerBallotBox,
		collection: &geojson.FeatureCollection{Features: features},
	})
}

// Config returns the assembled configuration, mainly for tests.
func (m *Map) Config() Config {
	return m.config
}