// Package boundaries turns a country/state GeoJSON document into static
// outline geometry on the globe.
package boundaries

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	geojson "github.com/paulmach/go.geojson"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/geo"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/scene"
)

const maxDocumentBytes = 64 << 20

// Outline colors.
const (
	OutlineColor scene.Color = 0x000000
	GlobeColor   scene.Color = 0x000000
	GlobeOpacity             = 0.2
)

// Read returns the document at src, a file path or an http(s) URL.
func Read(ctx context.Context, client *http.Client, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("opening boundaries: %w", err)
		}
		defer f.Close()
		return readLimited(f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching boundaries: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, src)
	}
	return readLimited(resp.Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading boundaries: %w", err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("boundaries exceed %d byte limit", maxDocumentBytes)
	}
	return data, nil
}

// Parse extracts every line and polygon ring from a FeatureCollection as
// lat/lon paths, split at the antimeridian. Runs shorter than two points are
// dropped.
func Parse(data []byte) ([][]geo.LatLon, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decoding boundaries: %w", err)
	}

	var out [][]geo.LatLon
	for _, f := range fc.Features {
		for _, path := range paths(f.Geometry) {
			for _, run := range geo.SplitAntimeridian(toLatLon(path)) {
				if len(run) >= 2 {
					out = append(out, run)
				}
			}
		}
	}
	return out, nil
}

// paths flattens a geometry into coordinate paths. Points are ignored.
func paths(g *geojson.Geometry) [][][]float64 {
	if g == nil {
		return nil
	}
	switch {
	case g.IsLineString():
		return [][][]float64{g.LineString}
	case g.IsMultiLineString():
		return g.MultiLineString
	case g.IsPolygon():
		return g.Polygon
	case g.IsMultiPolygon():
		var out [][][]float64
		for _, poly := range g.MultiPolygon {
			out = append(out, poly...)
		}
		return out
	case g.IsCollection():
		var out [][][]float64
		for _, child := range g.Geometries {
			out = append(out, paths(child)...)
		}
		return out
	}
	return nil
}

// toLatLon converts GeoJSON [lon, lat] positions.
func toLatLon(coords [][]float64) []geo.LatLon {
	out := make([]geo.LatLon, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		out = append(out, geo.LatLon{Lat: c[1], Lon: c[0]})
	}
	return out
}

// AttachEarth adds the static globe group holding the earth sphere and returns
// the group. The sphere is opaque to picking whether or not outlines load.
func AttachEarth(g *scene.Graph, globeRadius float64) scene.NodeID {
	group := g.Add(scene.Root, scene.Node{Kind: scene.KindGroup, Layer: scene.LayerStatic, Name: "globe", Visible: true})
	g.Add(group, scene.Node{
		Kind:    scene.KindSphere,
		Layer:   scene.LayerStatic,
		Name:    "earth",
		Radius:  globeRadius,
		Color:   GlobeColor,
		Opacity: GlobeOpacity,
		Visible: true,
	})
	return group
}

// Attach adds one static line node per path under group.
func Attach(g *scene.Graph, group scene.NodeID, outlines [][]geo.LatLon, globeRadius float64) {
	for _, path := range outlines {
		verts := make([]mgl64.Vec3, len(path))
		for i, ll := range path {
			verts[i] = geo.Project(ll.Lat, ll.Lon, 0, globeRadius)
		}
		g.Add(group, scene.Node{
			Kind:     scene.KindLine,
			Layer:    scene.LayerStatic,
			Name:     "boundary",
			Vertices: verts,
			Color:    OutlineColor,
			Opacity:  1,
			Visible:  true,
		})
	}
}
