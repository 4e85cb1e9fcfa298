// Package spatial joins geocoded voter buildings against isochrone polygons
// and rolls the result up into coverage summaries.
package spatial

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Contains reports whether the point (lng, lat) lies inside the MultiPolygon.
// A point inside a hole does not count. The bounding box is checked first so
// the ring tests only run for nearby points.
func Contains(mp *geom.MultiPolygon, lng, lat float64) bool {
	if mp == nil {
		return false
	}

	b := mp.Bounds()
	if lng < b.Min(0) || lng > b.Max(0) || lat < b.Min(1) || lat > b.Max(1) {
		return false
	}

	pt := geom.Coord{lng, lat}
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		shell := poly.LinearRing(0)
		if !xy.IsPointInRing(poly.Layout(), pt, shell.FlatCoords()) {
			continue
		}
		inHole := false
		for r := 1; r < poly.NumLinearRings(); r++ {
			if xy.IsPointInRing(poly.Layout(), pt, poly.LinearRing(r).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two points in km.
func HaversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
