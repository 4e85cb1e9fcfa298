// Package kepler builds Kepler.gl map configurations and exports them as
// self-contained HTML documents.
package kepler

// Layer titles double as dataset ids.
const (
	LayerCountyBoundary   = "County Boundary"
	LayerVoterAddress     = "Voter Address"
	LayerTravelTimeRadius = "Travel Time Radius"
	LayerBallotBox        = "Ballot Box"
)

// RGB is a Kepler.gl color triple.
type RGB [3]int

// RGBA is a Kepler.gl color quad.
type RGBA [4]int

var defaultHighlightColor = RGBA{252, 242, 26, 255}

// VisConfig holds per-layer rendering settings.
type VisConfig struct {
	Radius        int     `json:"radius,omitempty"`
	FixedRadius   bool    `json:"fixedRadius"`
	Opacity       float64 `json:"opacity"`
	StrokeOpacity float64 `json:"strokeOpacity"`
	Thickness     float64 `json:"thickness"`
	StrokeColor   *RGB    `json:"strokeColor,omitempty"`
	Stroked       bool    `json:"stroked"`
	Filled        bool    `json:"filled"`
}

// GeojsonColumns maps the geometry column for geojson layers.
type GeojsonColumns struct {
	Geojson string `json:"geojson"`
}

// LayerConfig configures a single Kepler.gl layer.
type LayerConfig struct {
	DataID         string         `json:"dataId"`
	Label          string         `json:"label"`
	Color          RGB            `json:"color"`
	HighlightColor RGBA           `json:"highlightColor"`
	Columns        GeojsonColumns `json:"columns"`
	IsVisible      bool           `json:"isVisible"`
	VisConfig      VisConfig      `json:"visConfig"`
}

// Layer is one Kepler.gl layer definition.
type Layer struct {
	ID     string      `json:"id"`
	Type   string      `json:"type"`
	Config LayerConfig `json:"config"`
}

// Filter is a multiSelect filter over a dataset column.
type Filter struct {
	DataID []string `json:"dataId"`
	ID     string   `json:"id"`
	Name   []string `json:"name"`
	Type   string   `json:"type"`
	Value  []string `json:"value"`
}

// Field names a tooltip column.
type Field struct {
	Name   string `json:"name"`
	Format *struct{} `json:"format"`
}

// Tooltip configures hover tooltips per dataset.
type Tooltip struct {
	FieldsToShow map[string][]Field `json:"fieldsToShow"`
	Enabled      bool               `json:"enabled"`
}

// InteractionConfig wraps interaction settings.
type InteractionConfig struct {
	Tooltip Tooltip `json:"tooltip"`
}

// VisState is the layer/filter/interaction portion of the config.
type VisState struct {
	Filters           []Filter          `json:"filters"`
	Layers            []Layer           `json:"layers"`
	InteractionConfig InteractionConfig `json:"interactionConfig"`
}

// MapState sets the initial viewport.
type MapState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      int     `json:"zoom"`
}

// VisibleLayerGroups toggles base-map layer groups.
type VisibleLayerGroups struct {
	Label    bool `json:"label"`
	Road     bool `json:"road"`
	Border   bool `json:"border"`
	Building bool `json:"building"`
	Water    bool `json:"water"`
	Land     bool `json:"land"`
}

// MapStyle sets the base map style.
type MapStyle struct {
	StyleType          string             `json:"styleType"`
	VisibleLayerGroups VisibleLayerGroups `json:"visibleLayerGroups"`
}

// Config is the v1 Kepler.gl map configuration.
type Config struct {
	VisState VisState `json:"visState"`
	MapState MapState `json:"mapState"`
	MapStyle MapStyle `json:"mapStyle"`
}

// versioned wraps Config in the {"version":"v1","config":...} envelope.
type versioned struct {
	Version string `json:"version"`
	Config  Config `json:"config"`
}

func defaultVisibleLayerGroups() VisibleLayerGroups {
	return VisibleLayerGroups{Label: true, Road: true, Border: true, Building: true, Water: true, Land: true}
}

func countyBoundaryVisConfig() VisConfig {
	white := RGB{255, 255, 255}
	return VisConfig{
		Opacity:       0.01,
		StrokeOpacity: 0.15,
		Thickness:     0.5,
		StrokeColor:   &white,
		Stroked:       true,
		Filled:        false,
	}
}

func voterAddressVisConfig() VisConfig {
	return VisConfig{Radius: 2, Opacity: 0.2, Filled: true}
}

func travelTimeRadiusVisConfig() VisConfig {
	stroke := RGB{50, 33, 19}
	return VisConfig{
		Opacity:       0.5,
		StrokeOpacity: 0.8,
		Thickness:     0.5,
		StrokeColor:   &stroke,
		Filled:        true,
	}
}

func ballotBoxVisConfig() VisConfig {
	black := RGB{0, 0, 0}
	return VisConfig{
		Radius:        18,
		Opacity:       0.8,
		StrokeOpacity: 0.8,
		Thickness:     0.8,
		StrokeColor:   &black,
		Stroked:       true,
		Filled:        true,
	}
}
