package models

import (
	"database/sql/driver"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
)

// TestMultiPolygonImplementsInterfaces verifies MultiPolygon implements required interfaces
func TestMultiPolygonImplementsInterfaces(t *testing.T) {
	var _ driver.Valuer = MultiPolygon{}
	var _ driver.Valuer = (*MultiPolygon)(nil)

	// sql.Scanner requires a pointer receiver
	var mp MultiPolygon
	var scanner interface{} = &mp
	if _, ok := scanner.(interface{ Scan(interface{}) error }); !ok {
		t.Error("MultiPolygon does not implement sql.Scanner interface")
	}
}

func TestNewMultiPolygon(t *testing.T) {
	ring := orb.Ring{{-122.5, 45.6}, {-122.4, 45.6}, {-122.4, 45.7}, {-122.5, 45.7}, {-122.5, 45.6}}

	tests := []struct {
		name      string
		input     orb.Geometry
		wantError bool
		wantLen   int
	}{
		{
			name:      "multipolygon passes through",
			input:     orb.MultiPolygon{orb.Polygon{ring}},
			wantError: false,
			wantLen:   1,
		},
		{
			name:      "single polygon is promoted",
			input:     orb.Polygon{ring},
			wantError: false,
			wantLen:   1,
		},
		{
			name:      "point is rejected",
			input:     orb.Point{0, 0},
			wantError: true,
		},
		{
			name:      "linestring is rejected",
			input:     orb.LineString{{0, 0}, {1, 1}},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp, err := NewMultiPolygon(tt.input)

			if tt.wantError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.wantError && len(mp.MultiPolygon) != tt.wantLen {
				t.Errorf("expected %d polygons, got %d", tt.wantLen, len(mp.MultiPolygon))
			}
		})
	}
}

// TestMultiPolygonValue tests the Value method (writing to database)
func TestMultiPolygonValue(t *testing.T) {
	tests := []struct {
		name    string
		geom    MultiPolygon
		wantNil bool
	}{
		{
			name: "valid multipolygon",
			geom: MultiPolygon{MultiPolygon: orb.MultiPolygon{
				orb.Polygon{{{-122.5, 45.6}, {-122.4, 45.6}, {-122.4, 45.7}, {-122.5, 45.7}, {-122.5, 45.6}}},
			}},
			wantNil: false,
		},
		{
			name:    "empty geometry",
			geom:    MultiPolygon{},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, err := tt.geom.Value()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if val != nil {
					t.Errorf("expected nil value, got %v", val)
				}
				return
			}
			if val == nil {
				t.Fatal("expected non-nil value, got nil")
			}

			// Value must be GeoJSON usable with ST_GeomFromGeoJSON.
			var geom map[string]interface{}
			if err := json.Unmarshal([]byte(val.(string)), &geom); err != nil {
				t.Errorf("Value() did not return valid JSON: %v", err)
			}
			if geom["type"] != "MultiPolygon" {
				t.Errorf("expected type=MultiPolygon, got %v", geom["type"])
			}
		})
	}
}

// TestMultiPolygonScan tests the Scan method (reading from database)
func TestMultiPolygonScan(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		wantError bool
		wantEmpty bool
	}{
		{
			name:      "nil value",
			input:     nil,
			wantError: false,
			wantEmpty: true,
		},
		{
			name:      "valid MultiPolygon GeoJSON",
			input:     []byte(`{"type":"MultiPolygon","coordinates":[[[[-122.5,45.6],[-122.4,45.6],[-122.4,45.7],[-122.5,45.7],[-122.5,45.6]]]]}`),
			wantError: false,
			wantEmpty: false,
		},
		{
			name:      "single Polygon is promoted",
			input:     []byte(`{"type":"Polygon","coordinates":[[[-122.5,45.6],[-122.4,45.6],[-122.4,45.7],[-122.5,45.7],[-122.5,45.6]]]}`),
			wantError: false,
			wantEmpty: false,
		},
		{
			name:      "string input is accepted",
			input:     `{"type":"MultiPolygon","coordinates":[[[[-122.5,45.6],[-122.4,45.6],[-122.4,45.7],[-122.5,45.7],[-122.5,45.6]]]]}`,
			wantError: false,
			wantEmpty: false,
		},
		{
			name:      "invalid JSON",
			input:     []byte(`{invalid}`),
			wantError: true,
		},
		{
			name:      "non-polygonal geometry",
			input:     []byte(`{"type":"Point","coordinates":[0,0]}`),
			wantError: true,
		},
		{
			name:      "unsupported input type",
			input:     42,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mp MultiPolygon
			err := mp.Scan(tt.input)

			if tt.wantError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantError && !tt.wantEmpty && len(mp.MultiPolygon) == 0 {
				t.Error("expected geometry to be populated")
			}
		})
	}
}

// TestMultiPolygonJSON tests JSON marshaling/unmarshaling
func TestMultiPolygonJSON(t *testing.T) {
	original := MultiPolygon{MultiPolygon: orb.MultiPolygon{
		orb.Polygon{{{-122.5, 45.6}, {-122.4, 45.6}, {-122.4, 45.7}, {-122.5, 45.7}, {-122.5, 45.6}}},
	}}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded MultiPolygon
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if len(decoded.MultiPolygon) != len(original.MultiPolygon) {
		t.Errorf("polygon count mismatch: got %d, want %d",
			len(decoded.MultiPolygon), len(original.MultiPolygon))
	}
	if !decoded.MultiPolygon.Equal(original.MultiPolygon) {
		t.Error("decoded geometry does not match original")
	}
}

func TestMultiPolygonJSON_Null(t *testing.T) {
	var mp MultiPolygon

	data, err := json.Marshal(mp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("expected null for empty geometry, got %s", data)
	}

	var decoded MultiPolygon
	if err := json.Unmarshal([]byte("null"), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.MultiPolygon != nil {
		t.Error("expected nil geometry after unmarshaling null")
	}
}

func TestGeoJSONMap(t *testing.T) {
	mp := MultiPolygon{MultiPolygon: orb.MultiPolygon{
		orb.Polygon{{{-122.5, 45.6}, {-122.4, 45.6}, {-122.4, 45.7}, {-122.5, 45.7}, {-122.5, 45.6}}},
	}}

	m := mp.GeoJSONMap()
	if m == nil {
		t.Fatal("expected a map for non-empty geometry")
	}
	if m["type"] != "MultiPolygon" {
		t.Errorf("expected type=MultiPolygon, got %v", m["type"])
	}

	var empty MultiPolygon
	if empty.GeoJSONMap() != nil {
		t.Error("expected nil map for empty geometry")
	}
}
