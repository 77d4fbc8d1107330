package orbit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/geo"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi/satapitest"
)

const globe = 5.0

func TestBuildPrependsOriginAndSplits(t *testing.T) {
	origin := satapi.State{Lat: 10, Lon: 170, AltKm: 420}
	pts := [][2]float64{{11, 175}, {12, 179}, {13, -178}, {14, -174}}

	segs := Build(origin, pts, globe)
	require.Len(t, segs, 2)
	require.Len(t, segs[0], 3)
	require.Len(t, segs[1], 2)

	assert.Equal(t, geo.Project(10, 170, 420, globe), segs[0][0], "track starts at the marker")
	assert.Equal(t, geo.Project(13, -178, 420, globe), segs[1][0])

	want := geo.OrbitRadius(420, globe)
	for _, seg := range segs {
		for _, v := range seg {
			assert.InDelta(t, want, v.Len(), 1e-9)
		}
	}
}

func TestBuildNoCrossingIsOneSegment(t *testing.T) {
	segs := Build(satapi.State{Lat: 0, Lon: 0}, [][2]float64{{1, 10}, {2, 20}, {3, 30}}, globe)
	require.Len(t, segs, 1)
	assert.Len(t, segs[0], 4)
}

func TestBuildDropsSinglePointRuns(t *testing.T) {
	// origin alone on the east side, then a run on the west side
	segs := Build(satapi.State{Lat: 0, Lon: 179}, [][2]float64{{0, -179}, {0, -178}}, globe)
	require.Len(t, segs, 1)
	assert.Len(t, segs[0], 2)
}

func TestLoad(t *testing.T) {
	srv := satapitest.NewServer()
	defer srv.Close()
	srv.SetState(25544, satapi.State{Lat: 51, Lon: 100, AltKm: 410})
	srv.SetTrack(25544, [][2]float64{{50, 101}, {49, 102}})

	l := NewLoader(satapi.NewClient(srv.URL, nil), globe, 0)
	tr, err := l.Load(context.Background(), 25544)
	require.NoError(t, err)

	assert.Equal(t, 410.0, tr.Origin.AltKm)
	assert.InDelta(t, geo.OrbitRadius(410, globe), tr.Radius, 1e-12)
	require.Len(t, tr.Segments, 1)
	assert.Len(t, tr.Segments[0], 3)
	assert.Equal(t, int64(DefaultStep/time.Second), srv.LastStep())
}

func TestLoadFailures(t *testing.T) {
	srv := satapitest.NewServer()
	defer srv.Close()
	srv.SetState(1, satapi.State{})
	srv.SetTrack(1, [][2]float64{{0, 0}})

	l := NewLoader(satapi.NewClient(srv.URL, nil), globe, time.Minute)

	_, err := l.Load(context.Background(), 1)
	assert.ErrorIs(t, err, ErrShortTrack)

	_, err = l.Load(context.Background(), 2)
	assert.True(t, satapi.IsStatus(err, http.StatusNotFound), "unknown id: %v", err)

	srv.SetTrack(1, [][2]float64{{0, 0}, {1, 1}})
	srv.FailTracks(http.StatusBadGateway)
	_, err = l.Load(context.Background(), 1)
	assert.True(t, satapi.IsStatus(err, http.StatusBadGateway), "track failure: %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Load(ctx, 1)
	assert.True(t, errors.Is(err, context.Canceled), "cancelled: %v", err)
}
