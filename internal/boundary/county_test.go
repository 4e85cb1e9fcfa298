package boundary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCountyRef(t *testing.T) {
	tests := []struct {
		ref   string
		name  string
		abbr  string
		fips  string
	}{
		{"King County, WA", "King County", "WA", "53"},
		{"King, WA", "King County", "WA", "53"},
		{"king, wa", "King County", "WA", "53"},
		{"  Pierce  ,  wa ", "Pierce County", "WA", "53"},
		{"Orleans Parish, LA", "Orleans Parish", "LA", "22"},
		{"North Slope Borough, AK", "North Slope Borough", "AK", "02"},
		{"district of columbia, DC", "District Of Columbia County", "DC", "11"},
	}
	for _, tt := range tests {
		parsed, err := ParseCountyRef(tt.ref)
		require.NoError(t, err, "ref %q", tt.ref)
		assert.Equal(t, tt.name, parsed.Name, "ref %q", tt.ref)
		assert.Equal(t, tt.abbr, parsed.StateAbbr, "ref %q", tt.ref)
		assert.Equal(t, tt.fips, parsed.StateFIPS, "ref %q", tt.ref)
	}
}

func TestCountyRefKey(t *testing.T) {
	for _, ref := range []string{"King County, WA", "king, wa", "KING,WA"} {
		parsed, err := ParseCountyRef(ref)
		require.NoError(t, err, "ref %q", ref)
		assert.Equal(t, "King County, WA", parsed.Key(), "ref %q", ref)
	}
}

func TestParseCountyRef_Invalid(t *testing.T) {
	for _, ref := range []string{
		"King County WA", // no comma
		"King, WA, USA",  // too many parts
		", WA",           // empty name
		"King, ZZ",       // unknown state
	} {
		_, err := ParseCountyRef(ref)
		require.Error(t, err, "ref %q", ref)

		var invalid *InvalidCountyError
		assert.True(t, errors.As(err, &invalid), "ref %q should be InvalidCountyError", ref)
		assert.Equal(t, ref, invalid.Ref)
	}
}

func TestInvalidCountyError_Message(t *testing.T) {
	err := &InvalidCountyError{Ref: "King County WA", Reason: "expected \"County Name, ST\""}
	assert.Contains(t, err.Error(), "King County WA")
	assert.Contains(t, err.Error(), "expected")
}
