package boundary

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// ShapeToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon
// with SRID 4326. Returns nil for unsupported or empty shapes.
func ShapeToMultiPolygon(shape shp.Shape) *geom.MultiPolygon {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}

		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// EncodeEWKB serializes a geometry to EWKB bytes (little-endian).
func EncodeEWKB(g geom.T) ([]byte, error) {
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: encode EWKB")
	}
	return data, nil
}

// DecodeMultiPolygon parses EWKB bytes into a MultiPolygon. A plain Polygon
// is promoted to a single-member MultiPolygon.
func DecodeMultiPolygon(data []byte) (*geom.MultiPolygon, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: decode EWKB")
	}
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(t.SRID())
		if err := mp.Push(t); err != nil {
			return nil, eris.Wrap(err, "boundary: promote polygon")
		}
		return mp, nil
	default:
		return nil, eris.Errorf("boundary: unexpected geometry type %T", g)
	}
}

// BoundsOf returns the min/max lng/lat of a geometry.
func BoundsOf(g geom.T) (minLng, minLat, maxLng, maxLat float64) {
	b := g.Bounds()
	return b.Min(0), b.Min(1), b.Max(0), b.Max(1)
}
