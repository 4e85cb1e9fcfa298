//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	geom "github.com/twpayne/go-geom"
)

func TestIsochroneNames(t *testing.T) {
	isochrones := map[string]*geom.MultiPolygon{
		"Library":   nil,
		"City Hall": nil,
		"Fire Dept": nil,
	}
	assert.Equal(t, []string{"City Hall", "Fire Dept", "Library"}, isochroneNames(isochrones))
	assert.Empty(t, isochroneNames(nil))
}
