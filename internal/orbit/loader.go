// Package orbit builds the ground-track overlay for a selected satellite.
package orbit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/geo"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi"
)

// DefaultStep is the ground track sampling step.
const DefaultStep = 60 * time.Second

// ErrShortTrack is returned when the service yields fewer than two points.
var ErrShortTrack = errors.New("ground track has fewer than two points")

// Source is the subset of the remote service the loader needs.
type Source interface {
	State(ctx context.Context, id int) (satapi.State, error)
	GroundTrack(ctx context.Context, id int, step time.Duration) ([][2]float64, error)
}

// Track is a loaded ground track ready to render.
type Track struct {
	// Origin is the sample the track was built from. Its altitude sets the
	// radius of every segment.
	Origin satapi.State
	Radius float64

	// Segments are the polyline runs in scene units, split at the antimeridian.
	// Every segment has at least two vertices.
	Segments [][]mgl64.Vec3
}

// Loader fetches and builds tracks.
type Loader struct {
	src         Source
	globeRadius float64
	step        time.Duration
}

// NewLoader returns a loader projecting onto a globe of globeRadius scene
// units. A non-positive step uses DefaultStep.
func NewLoader(src Source, globeRadius float64, step time.Duration) *Loader {
	if step <= 0 {
		step = DefaultStep
	}
	return &Loader{src: src, globeRadius: globeRadius, step: step}
}

// Load fetches the current state then the ground track for id. Both fetches
// complete before anything is built; either failing fails the load.
func (l *Loader) Load(ctx context.Context, id int) (Track, error) {
	st, err := l.src.State(ctx, id)
	if err != nil {
		return Track{}, fmt.Errorf("loading orbit altitude: %w", err)
	}

	pts, err := l.src.GroundTrack(ctx, id, l.step)
	if err != nil {
		return Track{}, fmt.Errorf("loading orbit track: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Track{}, err
	}
	if len(pts) < 2 {
		return Track{}, ErrShortTrack
	}

	segs := Build(st, pts, l.globeRadius)
	if len(segs) == 0 {
		return Track{}, ErrShortTrack
	}
	return Track{
		Origin:   st,
		Radius:   geo.OrbitRadius(st.AltKm, l.globeRadius),
		Segments: segs,
	}, nil
}

// Build turns a ground track into projected segments. The polyline starts at
// origin's position and every vertex uses origin's altitude. Runs shorter than
// two points are dropped.
func Build(origin satapi.State, points [][2]float64, globeRadius float64) [][]mgl64.Vec3 {
	path := make([]geo.LatLon, 0, len(points)+1)
	path = append(path, geo.LatLon{Lat: origin.Lat, Lon: origin.Lon})
	for _, p := range points {
		path = append(path, geo.LatLon{Lat: p[0], Lon: p[1]})
	}

	var out [][]mgl64.Vec3
	for _, run := range geo.SplitAntimeridian(path) {
		if len(run) < 2 {
			continue
		}
		seg := make([]mgl64.Vec3, len(run))
		for i, ll := range run {
			seg[i] = geo.Project(ll.Lat, ll.Lon, origin.AltKm, globeRadius)
		}
		out = append(out, seg)
	}
	return out
}
