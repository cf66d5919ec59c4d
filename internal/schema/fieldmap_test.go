package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_MapsKnownColumns(t *testing.T) {
	m := Default()

	attrs := map[string]string{
		"SERIAL_NUM": "986035637",
		"SITEADDR":   "123 MAIN ST",
		"OWNER":      "DOE JOHN",
		"LANDVAL":    "125000",
		"BLDGVAL":    "310000",
		"YRBUILT":    "1987",
		"ACRES":      "0.25",
		"ZONING":     "R1-6",
		"SHAPE_AREA": "1089.5", // unmapped, must be dropped
	}

	out := m.Apply(attrs)

	assert.Equal(t, "986035637", out[FieldParcelID])
	assert.Equal(t, "123 MAIN ST", out[FieldSiteAddress])
	assert.Equal(t, "DOE JOHN", out[FieldOwnerName])
	assert.Equal(t, "R1-6", out[FieldZoningCode])
	assert.NotContains(t, out, "SHAPE_AREA")
	assert.Len(t, out, 8)
}

func TestApply_MissingColumnIsOmitted(t *testing.T) {
	m := Default()

	// Dataset release without the OWNER column at all.
	attrs := map[string]string{
		"SERIAL_NUM": "12345",
		"SITEADDR":   "456 OAK AVE",
	}

	out := m.Apply(attrs)

	assert.Equal(t, "12345", out[FieldParcelID])
	_, present := out[FieldOwnerName]
	assert.False(t, present, "absent source columns must not be fabricated")
}

func TestValidate_PartialDriftStillLoads(t *testing.T) {
	m := Default()

	matched, err := m.Validate([]string{"SERIAL_NUM", "SITEADDR", "SHAPE_LEN", "OBJECTID"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{FieldParcelID, FieldSiteAddress}, matched)
}

func TestValidate_ZeroMappedColumnsIsFatal(t *testing.T) {
	m := Default()

	_, err := m.Validate([]string{"OBJECTID", "SHAPE_LEN", "SHAPE_AREA"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMappedColumns)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.json")
	content := `{"PropertyID": "parcel_id", "SitusAddress": "site_address"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := LoadFile(path)

	require.NoError(t, err)
	assert.Equal(t, FieldParcelID, m["PropertyID"])
	assert.Equal(t, FieldSiteAddress, m["SitusAddress"])
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
