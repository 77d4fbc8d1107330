// Package sat implements one satellite marker: a poller that keeps a target
// position fresh, smoothing toward it every frame, hover and selection
// visuals, and the selected satellite's orbit overlay.
//
// Poll results arrive on the entity's own goroutine and only update the
// kinematic target. Everything that touches scene nodes after construction
// (Update, SetHover, SetSelected, attaching a loaded orbit) runs on the frame
// loop. Dispose may be called from any goroutine.
package sat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/geo"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/metrics"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/motion"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/orbit"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/scene"
)

// Marker colors and render order.
const (
	BaseColor     scene.Color = 0xff0000
	HoverColor    scene.Color = 0xffa500
	SelectedColor scene.Color = 0x00ff00
	OrbitColor    scene.Color = 0x00ff88

	HaloOpacity   = 0.4
	HaloBaseScale = 0.7
	OrbitOpacity  = 0.9

	MarkerRenderOrder = 5
	OrbitRenderOrder  = 4
)

// Config tunes one entity.
type Config struct {
	GlobeRadius  float64
	DotRadius    float64
	PollInterval time.Duration
	LerpSpeed    float64
	Color        scene.Color
}

// DefaultConfig returns the stock marker settings.
func DefaultConfig() Config {
	return Config{
		GlobeRadius:  5,
		DotRadius:    0.06,
		PollInterval: 3 * time.Second,
		LerpSpeed:    motion.DefaultLerpSpeed,
		Color:        BaseColor,
	}
}

// StateSource fetches position samples.
type StateSource interface {
	State(ctx context.Context, id int) (satapi.State, error)
}

// OrbitLoader loads ground tracks.
type OrbitLoader interface {
	Load(ctx context.Context, id int) (orbit.Track, error)
}

// Deps are an entity's collaborators. Post hands a task to the frame loop and
// reports whether it was accepted; nil runs tasks inline.
type Deps struct {
	States StateSource
	Orbits OrbitLoader
	Graph  *scene.Graph
	Post   func(func()) bool
	Logger *slog.Logger
}

// Entity is one satellite marker.
type Entity struct {
	id     int
	cfg    Config
	states StateSource
	orbits OrbitLoader
	graph  *scene.Graph
	post   func(func()) bool
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mesh scene.NodeID
	halo scene.NodeID

	mu        sync.Mutex
	started   bool
	disposed  bool
	current   mgl64.Vec3
	target    mgl64.Vec3
	hasSample bool
	last      satapi.State
	lastAt    time.Time

	hovered  bool
	selected bool
	pulseT   float64

	orbitGroup  scene.NodeID
	orbitCancel context.CancelFunc
	orbitGen    uint64
}

// New creates the entity's marker and halo nodes. The marker stays hidden
// until the first sample arrives. Polling begins on Start.
func New(id int, cfg Config, deps Deps) *Entity {
	def := DefaultConfig()
	if cfg.GlobeRadius <= 0 {
		cfg.GlobeRadius = def.GlobeRadius
	}
	if cfg.DotRadius <= 0 {
		cfg.DotRadius = def.DotRadius
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.LerpSpeed <= 0 {
		cfg.LerpSpeed = def.LerpSpeed
	}
	if cfg.Color == 0 {
		cfg.Color = def.Color
	}

	post := deps.Post
	if post == nil {
		post = func(f func()) bool { f(); return true }
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Entity{
		id:     id,
		cfg:    cfg,
		states: deps.States,
		orbits: deps.Orbits,
		graph:  deps.Graph,
		post:   post,
		logger: logger.With("norad_id", id),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.mesh = e.graph.Add(scene.Root, scene.Node{
		Kind:        scene.KindSphere,
		Name:        "marker",
		Radius:      cfg.DotRadius,
		Color:       cfg.Color,
		Opacity:     1,
		RenderOrder: MarkerRenderOrder,
		Owner:       id,
	})
	e.halo = e.graph.Add(e.mesh, scene.Node{
		Kind:    scene.KindSphere,
		Name:    "halo",
		Radius:  cfg.DotRadius * 2,
		Scale:   HaloBaseScale,
		Color:   HoverColor,
		Opacity: HaloOpacity,
		Owner:   id,
	})
	return e
}

// ID returns the satellite's catalog number.
func (e *Entity) ID() int { return e.id }

// Mesh returns the marker node.
func (e *Entity) Mesh() scene.NodeID { return e.mesh }

// Halo returns the halo node, a child of the marker.
func (e *Entity) Halo() scene.NodeID { return e.halo }

// Start begins polling. The first poll is issued immediately. Start after
// Dispose, or a second Start, does nothing.
func (e *Entity) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.disposed {
		return
	}
	e.started = true
	go e.run()
}

// run is the poll loop. The timer is re-armed only after a poll completes, so
// at most one poll is in flight.
func (e *Entity) run() {
	defer close(e.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-timer.C:
		}

		e.pollOnce()
		if e.ctx.Err() != nil {
			return
		}
		timer.Reset(e.cfg.PollInterval)
	}
}

func (e *Entity) pollOnce() {
	start := time.Now()
	st, err := e.states.State(e.ctx, e.id)
	elapsed := time.Since(start)

	if err != nil {
		if e.ctx.Err() != nil {
			metrics.ObservePoll("cancelled", elapsed)
			return
		}
		metrics.ObservePoll("error", elapsed)
		e.logger.Warn("position poll failed", "error", err, "duration_ms", elapsed.Milliseconds())
		return
	}

	if err := st.Validate(); err != nil {
		metrics.ObservePoll("error", elapsed)
		e.logger.Warn("position poll returned unusable sample", "error", err)
		return
	}
	metrics.ObservePoll("ok", elapsed)
	e.applySample(st)
}

func (e *Entity) applySample(st satapi.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}

	e.target = geo.Project(st.Lat, st.Lon, st.AltKm, e.cfg.GlobeRadius)
	e.last = st
	e.lastAt = time.Now()
	if !e.hasSample {
		e.current = e.target
		e.hasSample = true
	}
	e.logger.Debug("position sample", "lat", st.Lat, "lon", st.Lon, "alt_km", st.AltKm)
}

// Update advances smoothing and the selection pulse by dt seconds and writes
// the result to the scene. Call it once per frame from the frame loop.
func (e *Entity) Update(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || !e.hasSample {
		return
	}

	e.current = motion.Smooth(e.current, e.target, e.cfg.LerpSpeed, dt)
	pos := e.current
	e.graph.Update(e.mesh, func(n *scene.Node) {
		n.Position = pos
		n.Visible = true
	})

	if e.selected && dt > 0 {
		e.pulseT += dt
		s, o := motion.Pulse(e.pulseT)
		e.graph.Update(e.halo, func(n *scene.Node) {
			n.Scale = HaloBaseScale * s
			n.Opacity = o
		})
	}
}

// Current returns the displayed position.
func (e *Entity) Current() mgl64.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Target returns the latest sampled position.
func (e *Entity) Target() mgl64.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target
}

// LastSample returns the most recent raw sample and when it arrived. ok is
// false until the first sample.
func (e *Entity) LastSample() (st satapi.State, at time.Time, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.lastAt, e.hasSample
}

// Disposed reports whether Dispose has been called.
func (e *Entity) Disposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// Dispose stops polling, removes the orbit and releases the marker and halo.
// It waits for an in-flight poll to return, so no request starts after
// Dispose returns. Repeated calls do nothing.
func (e *Entity) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	started := e.started
	e.hideOrbitLocked()
	e.mu.Unlock()

	e.cancel()
	if started {
		<-e.done
	}

	e.graph.Remove(e.mesh)
	e.logger.Debug("entity disposed")
}
