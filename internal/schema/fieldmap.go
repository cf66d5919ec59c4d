// Package schema maps provider-specific attribute columns onto the canonical
// parcel fields. County data releases drift between versions, so the mapping
// is tolerant: unknown columns are ignored and missing columns are simply
// omitted. Only a dataset with zero recognizable columns is fatal.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Canonical field names produced by the mapper.
const (
	FieldParcelID      = "parcel_id"
	FieldSiteAddress   = "site_address"
	FieldOwnerName     = "owner_name"
	FieldZoningCode    = "zoning_code"
	FieldLandValue     = "land_value"
	FieldBuildingValue = "building_value"
	FieldYearBuilt     = "year_built"
	FieldAcres         = "acres"
)

// ErrNoMappedColumns is returned when a source dataset contains none of the
// mapped columns. This aborts the ingestion run; a partially drifted schema
// does not.
var ErrNoMappedColumns = errors.New("no mapped columns found in source dataset")

// FieldMap maps source column names to canonical field names.
// It is consulted only during ingestion.
type FieldMap map[string]string

// Default returns the mapping for the county taxlot shapefile layout.
func Default() FieldMap {
	return FieldMap{
		"SERIAL_NUM": FieldParcelID,
		"SITEADDR":   FieldSiteAddress,
		"OWNER":      FieldOwnerName,
		"LANDVAL":    FieldLandValue,
		"BLDGVAL":    FieldBuildingValue,
		"YRBUILT":    FieldYearBuilt,
		"ACRES":      FieldAcres,
		"ZONING":     FieldZoningCode,
	}
}

// LoadFile reads a provider field map from a JSON file of
// {"SOURCE_COLUMN": "canonical_field"} pairs.
func LoadFile(path string) (FieldMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field map %s: %w", path, err)
	}

	var m FieldMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse field map %s: %w", path, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("field map %s is empty", path)
	}
	return m, nil
}

// Validate checks a dataset's column list against the map. It returns the
// canonical fields that will be populated, or ErrNoMappedColumns when not a
// single source column is recognized.
func (m FieldMap) Validate(columns []string) ([]string, error) {
	var matched []string
	for _, col := range columns {
		if canonical, ok := m[col]; ok {
			matched = append(matched, canonical)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: columns %v", ErrNoMappedColumns, columns)
	}
	return matched, nil
}

// Apply produces the canonical attribute set for one raw feature. Only fields
// present in both the map and the input appear in the output; nothing is
// fabricated for absent source columns.
func (m FieldMap) Apply(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for source, canonical := range m {
		if value, ok := attrs[source]; ok {
			out[canonical] = value
		}
	}
	return out
}
