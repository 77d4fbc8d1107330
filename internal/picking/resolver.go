// Package picking maps pointer events to the satellite under the pointer.
package picking

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/scene"
)

// Rect is the render surface's bounding rectangle in client pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PointerEvent is a pointer position in client pixels.
type PointerEvent struct {
	ClientX float64 `json:"client_x"`
	ClientY float64 `json:"client_y"`
}

// ToNDC converts a pointer position to normalized device coordinates relative
// to rect, with y pointing up. It reports false for an empty rect.
func ToNDC(ev PointerEvent, rect Rect) (mgl64.Vec2, bool) {
	if rect.Width <= 0 || rect.Height <= 0 {
		return mgl64.Vec2{}, false
	}
	x := (ev.ClientX-rect.Left)/rect.Width*2 - 1
	y := -((ev.ClientY-rect.Top)/rect.Height)*2 + 1
	return mgl64.Vec2{x, y}, true
}

// Hit is one ray intersection.
type Hit struct {
	Node     scene.NodeID
	Distance float64
}

// Resolver ray-casts against the visible spheres of a scene graph.
type Resolver struct {
	graph *scene.Graph
}

// NewResolver returns a resolver over g.
func NewResolver(g *scene.Graph) *Resolver {
	return &Resolver{graph: g}
}

// Resolve returns the catalog number owning the nearest sphere under the
// pointer. ok is false when nothing is hit or the nearest hit has no owner.
func (r *Resolver) Resolve(ev PointerEvent, rect Rect, cam scene.Camera) (owner int, ok bool) {
	ndc, valid := ToNDC(ev, rect)
	if !valid {
		return 0, false
	}
	hit, found := r.Nearest(cam.RayThrough(ndc))
	if !found {
		return 0, false
	}
	for _, n := range r.graph.Ancestry(hit.Node) {
		if n.Owner != 0 {
			return n.Owner, true
		}
	}
	return 0, false
}

// Nearest returns the closest visible sphere the ray enters. Hidden nodes
// hide their subtree. Ties keep the first node in walk order.
func (r *Resolver) Nearest(ray scene.Ray) (Hit, bool) {
	best := Hit{Distance: math.Inf(1)}
	found := false
	r.graph.Walk(func(n *scene.Node, world scene.Transform) bool {
		if !n.Visible {
			return false
		}
		if n.Kind != scene.KindSphere {
			return true
		}
		if t, ok := IntersectSphere(ray, world.Position, n.Radius*world.Scale); ok && t < best.Distance {
			best = Hit{Node: n.ID, Distance: t}
			found = true
		}
		return true
	})
	return best, found
}

// IntersectSphere returns the distance along ray to the first intersection
// with the sphere, or false if the ray misses. A ray starting inside the sphere
// hits at the exit point.
func IntersectSphere(ray scene.Ray, center mgl64.Vec3, radius float64) (float64, bool) {
	if radius <= 0 {
		return 0, false
	}
	oc := ray.Origin.Sub(center)
	b := oc.Dot(ray.Direction)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}
