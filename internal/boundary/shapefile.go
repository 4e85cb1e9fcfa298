package boundary

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/store"
)

// ParseShapefile reads a TIGER shapefile and returns boundary rows ready for
// loading. Records with malformed or missing geometry are skipped.
func ParseShapefile(shpPath string, product Product, year int) ([]store.Boundary, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name to index map. DBF field names are NUL padded.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(col string) string {
		idx, ok := fieldIdx[strings.ToLower(col)]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var rows []store.Boundary
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		mp := ShapeToMultiPolygon(shape)
		if mp == nil {
			skipped++
			continue
		}
		geomBytes, encErr := EncodeEWKB(mp)
		if encErr != nil {
			skipped++
			continue
		}

		minLng, minLat, maxLng, maxLat := BoundsOf(mp)
		rows = append(rows, store.Boundary{
			Product:   product.Name,
			GeoID:     attr(product.Columns[0]),
			Name:      attr(product.Columns[1]),
			StateFIPS: attr(product.Columns[2]),
			Year:      year,
			Geom:      geomBytes,
			MinLng:    minLng,
			MinLat:    minLat,
			MaxLng:    maxLng,
			MaxLat:    maxLat,
		})
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped shapefile records",
			zap.String("product", product.Name),
			zap.Int("skipped", skipped),
		)
	}

	return rows, nil
}
