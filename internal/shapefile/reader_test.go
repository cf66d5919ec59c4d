package shapefile

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestShapefile creates a two-parcel polygon shapefile with the county
// attribute layout.
func writeTestShapefile(t *testing.T, path string) {
	t.Helper()

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	fields := []shp.Field{
		shp.StringField("SERIAL_NUM", 20),
		shp.StringField("OWNER", 50),
		shp.StringField("LANDVAL", 15),
	}
	require.NoError(t, w.SetFields(fields))

	// Outer rings are clockwise per the shapefile spec.
	square := func(x, y float64) []shp.Point {
		return []shp.Point{
			{X: x, Y: y},
			{X: x, Y: y + 1},
			{X: x + 1, Y: y + 1},
			{X: x + 1, Y: y},
			{X: x, Y: y},
		}
	}

	w.Write((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{square(0, 0)})))
	w.Write((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{square(10, 10)})))

	require.NoError(t, w.WriteAttribute(0, 0, "111222333"))
	require.NoError(t, w.WriteAttribute(0, 1, "DOE JOHN"))
	require.NoError(t, w.WriteAttribute(0, 2, "125000"))
	require.NoError(t, w.WriteAttribute(1, 0, "444555666"))
	require.NoError(t, w.WriteAttribute(1, 1, "ROE JANE"))
	require.NoError(t, w.WriteAttribute(1, 2, "98000"))

	w.Close()

	// The writer emits the attribute table as "<base>dbf" (no dot); the
	// reader expects "<base>.dbf".
	base := path[:len(path)-len(".shp")]
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
}

func TestReader_StreamsFeatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxlots.shp")
	writeTestShapefile(t, path)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"SERIAL_NUM", "OWNER", "LANDVAL"}, r.Columns())

	var features []Feature
	for r.Next() {
		features = append(features, r.Feature())
	}
	require.NoError(t, r.Err())
	require.Len(t, features, 2)

	first := features[0]
	assert.Equal(t, "111222333", first.Attrs["SERIAL_NUM"])
	assert.Equal(t, "DOE JOHN", first.Attrs["OWNER"])

	mp, ok := first.Geometry.(orb.MultiPolygon)
	require.True(t, ok)
	require.Len(t, mp, 1)
	assert.Len(t, mp[0][0], 5)

	assert.Equal(t, "444555666", features[1].Attrs["SERIAL_NUM"])
}

func TestAssemblePolygons_HoleGrouping(t *testing.T) {
	// One clockwise outer ring with one counter-clockwise hole.
	points := []shp.Point{
		// outer, clockwise
		{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0},
		// hole, counter-clockwise
		{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2},
	}
	parts := []int32{0, 5}

	mp := assemblePolygons(parts, points, len(points))

	require.Len(t, mp, 1, "hole must not start a second polygon")
	require.Len(t, mp[0], 2)
	assert.Len(t, mp[0][0], 5)
	assert.Len(t, mp[0][1], 5)
}

func TestExtractBundle(t *testing.T) {
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "taxlots.shp")
	writeTestShapefile(t, shpPath)

	// Zip the shapefile parts the way the county bundle does.
	zipPath := filepath.Join(dir, "Taxlots.zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		data, err := os.ReadFile(filepath.Join(dir, "taxlots"+ext))
		require.NoError(t, err)
		entry, err := zw.Create("Taxlots/taxlots" + ext)
		require.NoError(t, err)
		_, err = entry.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	dest := t.TempDir()
	extracted, err := ExtractBundle(zipPath, dest)
	require.NoError(t, err)

	r, err := Open(extracted)
	require.NoError(t, err)
	defer r.Close()

	count := 0
	for r.Next() {
		count++
	}
	require.NoError(t, r.Err())
	assert.Equal(t, 2, count)
}

func TestExtractBundle_NoShapefile(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "empty.zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	entry, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("no shapes here"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	_, err = ExtractBundle(zipPath, t.TempDir())
	assert.Error(t, err)
}
