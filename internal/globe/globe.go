// Package globe assembles the scene, the frame loop, the swarm and the
// selection context into the service viewers talk to.
package globe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/boundaries"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/catalog"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/frameloop"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/orbit"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/picking"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/sat"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/scene"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/selection"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/swarm"
)

// ErrStopped is returned for input that arrives after the frame loop stopped.
var ErrStopped = errors.New("frame loop stopped")

// Remote is the remote service as the globe uses it.
type Remote interface {
	sat.StateSource
	orbit.Source
	selection.SummaryFetcher
}

// Config configures a Globe.
type Config struct {
	FPS        int
	Swarm      swarm.Config
	Boundaries string // file path or URL; empty disables outlines, not the globe
}

// Globe is the running scene.
type Globe struct {
	cfg    Config
	graph  *scene.Graph
	earth  scene.NodeID
	loop   *frameloop.Loop
	swarm  *swarm.Coordinator
	ctrl   *selection.Controller
	pools  *catalog.Store
	http   *http.Client
	logger *slog.Logger
}

// New wires a Globe. Nothing runs until Start and Run.
func New(cfg Config, remote Remote, pools swarm.PoolLoader, logger *slog.Logger) *Globe {
	store := catalog.NewStore()
	graph := scene.NewGraph()
	loop := frameloop.New(cfg.FPS, logger)
	radius := cfg.Swarm.Entity.GlobeRadius
	earth := boundaries.AttachEarth(graph, radius)

	deps := sat.Deps{
		States: remote,
		Orbits: orbit.NewLoader(remote, radius, orbit.DefaultStep),
		Graph:  graph,
		Post:   loop.Post,
		Logger: logger,
	}
	sw := swarm.New(cfg.Swarm, pools, store, deps, logger)
	ctrl := selection.NewController(sw.Target, picking.NewResolver(graph), remote, loop.Post, logger)
	sw.OnDispose(ctrl.Forget)
	loop.OnFrame(sw.Update)

	return &Globe{
		cfg:    cfg,
		graph:  graph,
		earth:  earth,
		loop:   loop,
		swarm:  sw,
		ctrl:   ctrl,
		pools:  store,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Start populates the swarm and loads the boundary outlines concurrently.
// An outline failure is logged and does not fail Start.
func (g *Globe) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return g.swarm.Populate(ctx)
	})
	if g.cfg.Boundaries != "" {
		eg.Go(func() error {
			g.loadBoundaries(ctx)
			return nil
		})
	}
	return eg.Wait()
}

func (g *Globe) loadBoundaries(ctx context.Context) {
	start := time.Now()
	data, err := boundaries.Read(ctx, g.http, g.cfg.Boundaries)
	if err != nil {
		g.logger.Warn("boundaries unavailable", "source", g.cfg.Boundaries, "error", err)
		return
	}
	paths, err := boundaries.Parse(data)
	if err != nil {
		g.logger.Warn("boundaries unreadable", "source", g.cfg.Boundaries, "error", err)
		return
	}
	boundaries.Attach(g.graph, g.earth, paths, g.cfg.Swarm.Entity.GlobeRadius)
	g.logger.Info("boundaries loaded",
		"paths", len(paths),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Run drives the frame loop until ctx is cancelled.
func (g *Globe) Run(ctx context.Context) {
	g.loop.Run(ctx)
}

// Close disposes every satellite and cancels selection fetches.
func (g *Globe) Close() {
	g.swarm.Close()
	g.ctrl.Close()
}

// Ready reports whether the swarm is populated.
func (g *Globe) Ready() bool {
	return g.swarm.Ready()
}

// Graph exposes the scene graph.
func (g *Globe) Graph() *scene.Graph {
	return g.graph
}

// Loop exposes the frame loop.
func (g *Globe) Loop() *frameloop.Loop {
	return g.loop
}

// Pointer validates a pointer event and queues it for the frame loop.
func (g *Globe) Pointer(in PointerInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	ev := picking.PointerEvent{ClientX: in.ClientX, ClientY: in.ClientY}
	cam := in.camera()

	var task func()
	switch in.Type {
	case PointerMove:
		task = func() { g.ctrl.PointerMove(ev, in.Rect, cam) }
	default:
		task = func() { g.ctrl.Click(ev, in.Rect, cam) }
	}
	if !g.loop.Post(task) {
		return ErrStopped
	}
	return nil
}

// CloseCard deselects the current satellite, as the card's close button does.
func (g *Globe) CloseCard() error {
	if !g.loop.Post(g.ctrl.Deselect) {
		return ErrStopped
	}
	return nil
}

// Card returns the detail card.
func (g *Globe) Card() selection.Card {
	return g.ctrl.Card()
}

// Static returns the static layer message.
func (g *Globe) Static() StaticMessage {
	msg := StaticMessage{
		Type:        "static",
		GlobeRadius: g.cfg.Swarm.Entity.GlobeRadius,
		Nodes:       nonNil(g.graph.Snapshot(scene.LayerStatic)),
	}
	if p := g.pools.Get(); p != nil {
		msg.PoolSource = string(p.Source)
		msg.PoolSize = len(p.IDs)
		msg.PoolAge = int(g.pools.AgeSeconds())
	}
	return msg
}

// Frame returns the current dynamic layer message.
func (g *Globe) Frame() FrameMessage {
	return FrameMessage{
		Type:     "frame",
		Frame:    g.loop.Frames(),
		T:        time.Now().UTC().Format(time.RFC3339Nano),
		Hovered:  g.ctrl.Hovered(),
		Selected: g.ctrl.Selected(),
		Nodes:    nonNil(g.graph.Snapshot(scene.LayerDynamic)),
	}
}

// Scene returns both layers and the card.
func (g *Globe) Scene() SceneMessage {
	return SceneMessage{Static: g.Static(), Frame: g.Frame(), Card: g.Card()}
}

// Satellite returns the diagnostic view of one tracked satellite.
func (g *Globe) Satellite(id int) (SatelliteView, bool) {
	e, ok := g.swarm.Lookup(id)
	if !ok {
		return SatelliteView{}, false
	}
	v := SatelliteView{
		NORADID:       id,
		Current:       e.Current(),
		Target:        e.Target(),
		Hovered:       e.Hovered(),
		Selected:      e.Selected(),
		OrbitSegments: e.OrbitSegments(),
	}
	if st, at, ok := e.LastSample(); ok {
		v.HasSample = true
		v.Lat, v.Lon, v.AltKm = st.Lat, st.Lon, st.AltKm
		v.SampledAt = at.UTC().Format(time.RFC3339Nano)
	}
	return v, true
}

// IDs returns the tracked catalog numbers.
func (g *Globe) IDs() []int {
	return g.swarm.IDs()
}

func nonNil(nodes []scene.NodeView) []scene.NodeView {
	if nodes == nil {
		return []scene.NodeView{}
	}
	return nodes
}

var _ Remote = (*satapi.Client)(nil)
