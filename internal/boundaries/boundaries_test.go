package boundaries

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/geo"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/scene"
)

const sample = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "square"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}},
    {"type": "Feature", "properties": {"name": "seam"},
     "geometry": {"type": "LineString", "coordinates": [[170,5],[179,5],[-179,5],[-170,5]]}},
    {"type": "Feature", "properties": {"name": "islands"},
     "geometry": {"type": "MultiPolygon", "coordinates": [
       [[[20,20],[21,20],[21,21],[20,20]]],
       [[[30,30],[31,30],[31,31],[30,30]]]
     ]}},
    {"type": "Feature", "properties": {"name": "capital"},
     "geometry": {"type": "Point", "coordinates": [1,1]}}
  ]
}`

func TestParse(t *testing.T) {
	paths, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, paths, 5, "square, two seam runs, two islands")

	assert.Equal(t, geo.LatLon{Lat: 0, Lon: 0}, paths[0][0])
	assert.Equal(t, geo.LatLon{Lat: 0, Lon: 10}, paths[0][1], "positions are lon, lat")
	assert.Len(t, paths[1], 2)
	assert.Equal(t, -179.0, paths[2][0].Lon)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("{"))
	assert.Error(t, err)
}

func TestAttach(t *testing.T) {
	g := scene.NewGraph()
	paths, err := Parse([]byte(sample))
	require.NoError(t, err)

	Attach(g, AttachEarth(g, 5), paths, 5)

	static := g.Snapshot(scene.LayerStatic)
	require.Len(t, static, 6, "globe and five outlines")
	assert.Empty(t, g.Snapshot(scene.LayerDynamic))

	for _, v := range static[1:] {
		for _, p := range v.Vertices {
			r := p[0]*p[0] + p[1]*p[1] + p[2]*p[2]
			assert.InDelta(t, 25, r, 1e-9, "outlines sit on the surface")
		}
	}
}

func TestAttachEarthAlone(t *testing.T) {
	g := scene.NewGraph()
	AttachEarth(g, 5)

	static := g.Snapshot(scene.LayerStatic)
	require.Len(t, static, 1)
	assert.Equal(t, scene.KindSphere, static[0].Kind)
	assert.Equal(t, "earth", static[0].Name)
	assert.InDelta(t, 5, static[0].Radius, 1e-12)
}

func TestReadFileAndURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	data, err := Read(context.Background(), http.DefaultClient, path)
	require.NoError(t, err)
	assert.Equal(t, sample, string(data))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sample))
	}))
	defer srv.Close()
	data, err = Read(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, sample, string(data))

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	_, err = Read(context.Background(), missing.Client(), missing.URL)
	assert.Error(t, err)

	_, err = Read(context.Background(), http.DefaultClient, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
