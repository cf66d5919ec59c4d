// Package shapefile streams features out of an ESRI shapefile (.shp plus its
// .dbf attribute table) as orb geometries with string attributes. Bulk county
// exports arrive either as a bare shapefile or inside a zip bundle.
package shapefile

import (
	"fmt"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// Feature is one raw record from the source dataset: the attribute row keyed
// by source column name, plus the shape geometry in the source coordinate
// system.
type Feature struct {
	Attrs    map[string]string
	Geometry orb.Geometry
}

// Reader iterates a shapefile one feature at a time so memory stays bounded
// on large counties. It is single-pass and not restartable.
type Reader struct {
	shape   *shp.Reader
	columns []string
	current Feature
	err     error
}

// Open opens the shapefile at path for streaming.
func Open(path string) (*Reader, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}

	fields := shape.Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.String()
	}

	return &Reader{shape: shape, columns: columns}, nil
}

// Columns returns the attribute column names of the dataset, used for schema
// validation before any feature is loaded.
func (r *Reader) Columns() []string {
	return r.columns
}

// Next advances to the next feature. It returns false at the end of the file
// or on error; check Err afterwards.
func (r *Reader) Next() bool {
	for r.shape.Next() {
		row, shape := r.shape.Shape()

		geometry, ok := convertShape(shape)
		if !ok {
			// Null or non-polygonal shapes carry no parcel boundary.
			continue
		}

		attrs := make(map[string]string, len(r.columns))
		for i, name := range r.columns {
			attrs[name] = strings.TrimSpace(r.shape.ReadAttribute(row, i))
		}

		r.current = Feature{Attrs: attrs, Geometry: geometry}
		return true
	}

	r.err = r.shape.Err()
	return false
}

// Feature returns the feature read by the last successful Next.
func (r *Reader) Feature() Feature {
	return r.current
}

// Err returns the first error encountered while iterating.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the underlying file handles.
func (r *Reader) Close() error {
	return r.shape.Close()
}

// convertShape maps a shp geometry onto orb. Parcels are polygonal; points
// and lines are skipped by the caller.
func convertShape(s shp.Shape) (orb.Geometry, bool) {
	switch shape := s.(type) {
	case *shp.Polygon:
		return assemblePolygons(shape.Parts, shape.Points, int(shape.NumPoints)), true
	case *shp.PolygonZ:
		return assemblePolygons(shape.Parts, shape.Points, int(shape.NumPoints)), true
	default:
		return nil, false
	}
}

// assemblePolygons groups shapefile rings into a MultiPolygon. The shapefile
// spec stores outer rings clockwise and holes counter-clockwise, so a
// clockwise ring starts a new polygon and any following counter-clockwise
// rings are its holes.
func assemblePolygons(parts []int32, points []shp.Point, numPoints int) orb.MultiPolygon {
	var mp orb.MultiPolygon

	for i := 0; i < len(parts); i++ {
		start := int(parts[i])
		end := numPoints
		if i < len(parts)-1 {
			end = int(parts[i+1])
		}

		ring := make(orb.Ring, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{points[j].X, points[j].Y})
		}
		if len(ring) < 4 {
			continue
		}

		if clockwise(ring) || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
		} else {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
		}
	}

	return mp
}

// clockwise reports ring orientation via the shoelace signed area.
func clockwise(r orb.Ring) bool {
	var area float64
	for i := 0; i < len(r)-1; i++ {
		area += (r[i+1][0] - r[i][0]) * (r[i+1][1] + r[i][1])
	}
	return area > 0
}
