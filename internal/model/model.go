// Package model defines the core entities of the ballot-box analysis pipeline.
package model

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TravelType is a TravelTime API transportation mode.
type TravelType string

const (
	TravelDriving         TravelType = "driving"
	TravelPublicTransport TravelType = "public_transport"
	TravelWalking         TravelType = "walking"
)

// Valid reports whether t is a recognized transportation mode.
func (t TravelType) Valid() bool {
	switch t {
	case TravelDriving, TravelPublicTransport, TravelWalking:
		return true
	default:
		return false
	}
}

// Weekday is an arrival day for isochrone generation.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// Weekdays maps weekday names to time.Weekday ordinals.
var Weekdays = map[Weekday]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

var nameOrIDPattern = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// SanitizeNameOrID strips every character that is not alphanumeric or a hyphen.
// Sanitized names are safe for cache keys and API search ids.
func SanitizeNameOrID(value string) string {
	return nameOrIDPattern.ReplaceAllString(value, "")
}

// Location is a named point in WGS84.
type Location struct {
	NameOrID string  `json:"name_or_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// NewLocation builds a Location with a sanitized NameOrID.
func NewLocation(nameOrID string, lat, lng float64) Location {
	return Location{NameOrID: SanitizeNameOrID(nameOrID), Lat: lat, Lng: lng}
}

// BallotBox is a physical drop-box location.
type BallotBox struct {
	Name    string  `json:"name"`
	Street  string  `json:"street,omitempty"`
	City    string  `json:"city,omitempty"`
	State   string  `json:"state,omitempty"`
	ZipCode string  `json:"zip_code,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// VoterAddress is a single voter-roll row. AddressID identifies the unit-level
// address; BuildingID collapses units within the same building so a building
// is geocoded once.
type VoterAddress struct {
	AddressID  string   `json:"address_id"`
	BuildingID string   `json:"building_id"`
	Street     string   `json:"street"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	ZipCode    string   `json:"zip_code"`
	Unit       string   `json:"unit,omitempty"`
	Voters     int      `json:"voters"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
	Source     string   `json:"geocoding_source,omitempty"`
	Quality    string   `json:"geocoding_quality,omitempty"`
}

// Geocoded reports whether the address has resolved coordinates.
func (v *VoterAddress) Geocoded() bool {
	return v.Lat != nil && v.Lng != nil
}

// BuildingID returns the sha256 hex id for the street/city/state/zip tuple.
// The hash is case-insensitive.
func BuildingID(street, city, state, zip string) string {
	return addressHash(street, city, state, zip)
}

// AddressID returns the unit-level sha256 hex id. With an empty unit it equals
// the building id.
func AddressID(street, city, state, zip, unit string) string {
	if unit == "" {
		return addressHash(street, city, state, zip)
	}
	return addressHash(street, city, state, zip, unit)
}

func addressHash(components ...string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.Join(components, ""))))
	return fmt.Sprintf("%x", h)
}

// AnalysisStatus represents the state of a coverage analysis run.
type AnalysisStatus string

const (
	AnalysisStatusQueued   AnalysisStatus = "queued"
	AnalysisStatusRunning  AnalysisStatus = "running"
	AnalysisStatusComplete AnalysisStatus = "complete"
	AnalysisStatusFailed   AnalysisStatus = "failed"
)

// Analysis represents a single coverage analysis run.
type Analysis struct {
	ID            string           `json:"id"`
	County        string           `json:"county"`
	TravelType    TravelType       `json:"travel_type"`
	TravelMinutes int              `json:"travel_minutes"`
	Status        AnalysisStatus   `json:"status"`
	Result        *CoverageSummary `json:"result,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// CoverageSummary is the rollup produced by the spatial join: how many voters
// live within any ballot-box isochrone, how many do not, and per-box detail.
// Shares are over the full roll; voters at ungeocoded addresses count as
// outside and are also reported separately.
type CoverageSummary struct {
	TotalVoters      int           `json:"total_voters" yaml:"total_voters"`
	TotalBuildings   int           `json:"total_buildings" yaml:"total_buildings"`
	WithinVoters     int           `json:"within_voters" yaml:"within_voters"`
	OutsideVoters    int           `json:"outside_voters" yaml:"outside_voters"`
	UngeocodedVoters int           `json:"ungeocoded_voters" yaml:"ungeocoded_voters"`
	WithinShare      float64       `json:"within_share" yaml:"within_share"`
	OutsideShare     float64       `json:"outside_share" yaml:"outside_share"`
	Boxes            []BoxCoverage `json:"boxes,omitempty" yaml:"boxes,omitempty"`
}

// BoxCoverage holds per-ballot-box voter counts from the spatial join.
type BoxCoverage struct {
	Name           string  `json:"name" yaml:"name"`
	Voters         int     `json:"voters" yaml:"voters"`
	Buildings      int     `json:"buildings" yaml:"buildings"`
	MeanDistanceKM float64 `json:"mean_distance_km,omitempty" yaml:"mean_distance_km,omitempty"`
}
