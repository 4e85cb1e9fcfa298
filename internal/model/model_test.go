package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildingID_Deterministic(t *testing.T) {
	a := BuildingID("123 Main St", "Seattle", "WA", "98101")
	b := BuildingID("123 Main St", "Seattle", "WA", "98101")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // sha256 hex
}

func TestBuildingID_CaseInsensitive(t *testing.T) {
	a := BuildingID("123 MAIN ST", "SEATTLE", "WA", "98101")
	b := BuildingID("123 main st", "seattle", "wa", "98101")
	assert.Equal(t, a, b)
}

func TestBuildingID_DifferentAddresses(t *testing.T) {
	a := BuildingID("123 Main St", "Seattle", "WA", "98101")
	b := BuildingID("124 Main St", "Seattle", "WA", "98101")
	assert.NotEqual(t, a, b)
}

func TestAddressID_EmptyUnitEqualsBuildingID(t *testing.T) {
	building := BuildingID("123 Main St", "Seattle", "WA", "98101")
	address := AddressID("123 Main St", "Seattle", "WA", "98101", "")
	assert.Equal(t, building, address)
}

func TestAddressID_UnitDistinguishes(t *testing.T) {
	building := BuildingID("123 Main St", "Seattle", "WA", "98101")
	apt1 := AddressID("123 Main St", "Seattle", "WA", "98101", "Apt 1")
	apt2 := AddressID("123 Main St", "Seattle", "WA", "98101", "Apt 2")
	assert.NotEqual(t, building, apt1)
	assert.NotEqual(t, apt1, apt2)
}

func TestSanitizeNameOrID(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"City Hall", "CityHall"},
		{"Drop-Box #7", "Drop-Box7"},
		{"Ballot Box (24hr)", "BallotBox24hr"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, SanitizeNameOrID(tt.in), "input %q", tt.in)
	}
}

func TestNewLocation_SanitizesName(t *testing.T) {
	loc := NewLocation("City Hall #1", 47.6, -122.3)
	assert.Equal(t, "CityHall1", loc.NameOrID)
	assert.Equal(t, 47.6, loc.Lat)
	assert.Equal(t, -122.3, loc.Lng)
}

func TestTravelType_Valid(t *testing.T) {
	assert.True(t, TravelDriving.Valid())
	assert.True(t, TravelPublicTransport.Valid())
	assert.True(t, TravelWalking.Valid())
	assert.False(t, TravelType("flying").Valid())
	assert.False(t, TravelType("").Valid())
}

func TestVoterAddress_Geocoded(t *testing.T) {
	var v VoterAddress
	assert.False(t, v.Geocoded())

	lat, lng := 47.6, -122.3
	v.Lat = &lat
	assert.False(t, v.Geocoded())

	v.Lng = &lng
	assert.True(t, v.Geocoded())
}
