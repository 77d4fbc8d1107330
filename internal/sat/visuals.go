package sat

import (
	"context"
	"errors"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/metrics"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/orbit"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/scene"
)

// SetHover shows or hides the hover treatment. A selected marker keeps its
// selected color and halo.
func (e *Entity) SetHover(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.hovered = on
	e.applyVisualsLocked(false)
}

// SetSelected switches the selected treatment on or off. Turning it on
// restarts the halo pulse.
func (e *Entity) SetSelected(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.selected = on
	e.pulseT = 0
	e.applyVisualsLocked(true)
}

// Hovered reports the hover flag.
func (e *Entity) Hovered() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hovered
}

// Selected reports the selected flag.
func (e *Entity) Selected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// applyVisualsLocked derives marker and halo appearance from the two flags.
// Every state maps to exactly one appearance, so leaving a state always undoes
// what entering it did. The halo's scale and opacity belong to the pulse while
// selected and are only reset when resetPulse is set.
func (e *Entity) applyVisualsLocked(resetPulse bool) {
	markerColor := e.cfg.Color
	haloColor := HoverColor
	switch {
	case e.selected:
		markerColor = SelectedColor
		haloColor = SelectedColor
	case e.hovered:
		markerColor = HoverColor
	}
	haloVisible := e.hovered || e.selected
	resetHalo := resetPulse || !e.selected

	e.graph.Update(e.mesh, func(n *scene.Node) {
		n.Color = markerColor
	})
	e.graph.Update(e.halo, func(n *scene.Node) {
		n.Color = haloColor
		n.Visible = haloVisible
		if resetHalo {
			n.Scale = HaloBaseScale
			n.Opacity = HaloOpacity
		}
	})
}

// ShowOrbit clears any current orbit and starts loading a new one in the
// background. The loaded track is attached on the frame loop, unless
// HideOrbit, another ShowOrbit or Dispose happened in the meantime. Failures
// leave no orbit.
func (e *Entity) ShowOrbit() {
	e.mu.Lock()
	if e.disposed || e.orbits == nil {
		e.mu.Unlock()
		return
	}
	e.hideOrbitLocked()
	ctx, cancel := context.WithCancel(e.ctx)
	e.orbitCancel = cancel
	gen := e.orbitGen
	e.mu.Unlock()

	go func() {
		defer cancel()
		tr, err := e.orbits.Load(ctx, e.id)
		if err != nil {
			if ctx.Err() != nil {
				metrics.IncOrbitLoad("cancelled")
				return
			}
			metrics.IncOrbitLoad("error")
			if errors.Is(err, orbit.ErrShortTrack) {
				e.logger.Debug("orbit track too short")
			} else {
				e.logger.Debug("orbit load failed", "error", err)
			}
			return
		}
		if !e.post(func() { e.attachOrbit(gen, tr) }) {
			metrics.IncOrbitLoad("cancelled")
		}
	}()
}

func (e *Entity) attachOrbit(gen uint64, tr orbit.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed || gen != e.orbitGen || e.orbitGroup != 0 {
		metrics.IncOrbitLoad("stale")
		return
	}

	group := e.graph.Add(scene.Root, scene.Node{Kind: scene.KindGroup, Name: "orbit", Visible: true})
	for _, seg := range tr.Segments {
		e.graph.Add(group, scene.Node{
			Kind:        scene.KindLine,
			Name:        "orbit-segment",
			Vertices:    seg,
			Color:       OrbitColor,
			Opacity:     OrbitOpacity,
			Visible:     true,
			RenderOrder: OrbitRenderOrder,
		})
	}
	e.orbitGroup = group
	metrics.IncOrbitLoad("loaded")
	e.logger.Debug("orbit shown", "segments", len(tr.Segments), "radius", tr.Radius)
}

// HideOrbit removes the orbit overlay and abandons any load in progress. It is
// safe to call when there is no orbit.
func (e *Entity) HideOrbit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hideOrbitLocked()
}

func (e *Entity) hideOrbitLocked() {
	e.orbitGen++
	if e.orbitCancel != nil {
		e.orbitCancel()
		e.orbitCancel = nil
	}
	if e.orbitGroup != 0 {
		e.graph.Remove(e.orbitGroup)
		e.orbitGroup = 0
	}
}

// OrbitSegments returns the number of rendered orbit segments, 0 when no
// orbit is shown.
func (e *Entity) OrbitSegments() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.orbitGroup == 0 {
		return 0
	}
	return len(e.graph.Children(e.orbitGroup))
}
