package geo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epiwatch/leishdash/internal/dataset"
)

type memSink struct {
	centroids []dataset.Centroid
}

func (m *memSink) UpsertCentroids(_ context.Context, centroids []dataset.Centroid) (int, error) {
	m.centroids = append(m.centroids, centroids...)
	return len(centroids), nil
}

func writeFixtureShapefile(t *testing.T, codeField, nameField string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "municipios.shp")
	writer, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	err = writer.SetFields([]shp.Field{
		shp.StringField(codeField, 10),
		shp.StringField(nameField, 40),
	})
	require.NoError(t, err)

	square := [][]shp.Point{{
		{X: 0, Y: 0},
		{X: 0, Y: 2},
		{X: 2, Y: 2},
		{X: 2, Y: 0},
		{X: 0, Y: 0},
	}}
	row := writer.Write((*shp.Polygon)(shp.NewPolyLine(square)))
	require.NoError(t, writer.WriteAttribute(int(row), 0, "3550308"))
	require.NoError(t, writer.WriteAttribute(int(row), 1, "São Paulo"))

	writer.Close()
	return path
}

func TestImportCentroids(t *testing.T) {
	path := writeFixtureShapefile(t, "CD_MUN", "NM_MUN")

	sink := &memSink{}
	n, err := ImportCentroids(context.Background(), sink, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, sink.centroids, 1)
	c := sink.centroids[0]
	assert.Equal(t, "3550308", c.MunicipalityID)
	assert.Equal(t, "São Paulo", c.Name)
	assert.InDelta(t, 1.0, c.Lat, 1e-9)
	assert.InDelta(t, 1.0, c.Lon, 1e-9)
}

func TestImportCentroidsLegacyFieldNames(t *testing.T) {
	path := writeFixtureShapefile(t, "CD_GEOCMU", "NM_MUNICIP")

	sink := &memSink{}
	n, err := ImportCentroids(context.Background(), sink, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "3550308", sink.centroids[0].MunicipalityID)
}

func TestImportCentroidsMissingFile(t *testing.T) {
	_, err := ImportCentroids(context.Background(), &memSink{}, filepath.Join(t.TempDir(), "nope.shp"))
	assert.Error(t, err)
}

func TestShapeCentroidPoint(t *testing.T) {
	lat, lon, ok := shapeCentroid(&shp.Point{X: -46.6, Y: -23.5})
	require.True(t, ok)
	assert.InDelta(t, -23.5, lat, 1e-9)
	assert.InDelta(t, -46.6, lon, 1e-9)
}

func TestShapeCentroidEmptyPolygon(t *testing.T) {
	_, _, ok := shapeCentroid(&shp.Polygon{})
	assert.False(t, ok)
}
