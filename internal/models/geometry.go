package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MultiPolygon is a parcel boundary in SRID 4326 (WGS84), stored as a PostGIS
// MultiPolygon and exchanged as GeoJSON. It wraps an orb geometry so the
// ingestion pipeline and the API share one representation.
type MultiPolygon struct {
	orb.MultiPolygon
}

// NewMultiPolygon normalizes any polygonal orb geometry into a MultiPolygon.
// Single polygons are promoted; other geometry types are rejected.
func NewMultiPolygon(g orb.Geometry) (MultiPolygon, error) {
	switch geom := g.(type) {
	case orb.MultiPolygon:
		return MultiPolygon{MultiPolygon: geom}, nil
	case orb.Polygon:
		return MultiPolygon{MultiPolygon: orb.MultiPolygon{geom}}, nil
	default:
		return MultiPolygon{}, fmt.Errorf("expected polygonal geometry, got %T", g)
	}
}

// Scan implements sql.Scanner for reading geometry from the database.
// The repository selects ST_AsGeoJSON(geometry), so the driver hands us a
// GeoJSON document.
func (mp *MultiPolygon) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan MultiPolygon: expected []byte or string, got %T", value)
	}

	geom, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal multipolygon geometry: %w", err)
	}

	parsed, err := NewMultiPolygon(geom.Geometry())
	if err != nil {
		return fmt.Errorf("failed to scan MultiPolygon: %w", err)
	}

	mp.MultiPolygon = parsed.MultiPolygon
	return nil
}

// Value implements driver.Valuer for writing geometry to the database.
// Returns a GeoJSON string for use with ST_GeomFromGeoJSON in SQL.
func (mp MultiPolygon) Value() (driver.Value, error) {
	if len(mp.MultiPolygon) == 0 {
		return nil, nil
	}

	data, err := geojson.NewGeometry(mp.MultiPolygon).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal multipolygon to GeoJSON: %w", err)
	}
	return string(data), nil
}

// MarshalJSON implements json.Marshaler for API responses.
// Output is a GeoJSON geometry object ({type, coordinates}).
func (mp MultiPolygon) MarshalJSON() ([]byte, error) {
	if len(mp.MultiPolygon) == 0 {
		return []byte("null"), nil
	}
	return geojson.NewGeometry(mp.MultiPolygon).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler for parsing GeoJSON input.
func (mp *MultiPolygon) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		mp.MultiPolygon = nil
		return nil
	}

	geom, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal multipolygon: %w", err)
	}

	parsed, err := NewMultiPolygon(geom.Geometry())
	if err != nil {
		return err
	}
	mp.MultiPolygon = parsed.MultiPolygon
	return nil
}

// GeoJSONMap renders the geometry as a GeoJSON-style map for handler DTOs.
func (mp MultiPolygon) GeoJSONMap() map[string]interface{} {
	if len(mp.MultiPolygon) == 0 {
		return nil
	}
	return map[string]interface{}{
		"type":        "MultiPolygon",
		"coordinates": mp.MultiPolygon,
	}
}
