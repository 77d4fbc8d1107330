package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera is a perspective camera looking at Target.
type Camera struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
	Up       mgl64.Vec3
	FovYDeg  float64
	Aspect   float64
	Near     float64
	Far      float64
}

// DefaultCamera is the startup view: 10 units out on +Z looking at the globe.
func DefaultCamera(aspect float64) Camera {
	if aspect <= 0 {
		aspect = 1
	}
	return Camera{
		Position: mgl64.Vec3{0, 0, 10},
		Up:       mgl64.Vec3{0, 1, 0},
		FovYDeg:  75,
		Aspect:   aspect,
		Near:     1,
		Far:      100,
	}
}

// ViewProjection returns projection * view.
func (c Camera) ViewProjection() mgl64.Mat4 {
	up := c.Up
	if up.Len() == 0 {
		up = mgl64.Vec3{0, 1, 0}
	}
	proj := mgl64.Perspective(mgl64.DegToRad(c.FovYDeg), c.Aspect, c.Near, c.Far)
	view := mgl64.LookAtV(c.Position, c.Target, up)
	return proj.Mul4(view)
}

// Ray is a half-line with a unit direction.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// At returns the point t units along the ray.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// RayThrough returns the picking ray from the camera through the given
// normalized device coordinates (x and y in [-1, 1], y up).
func (c Camera) RayThrough(ndc mgl64.Vec2) Ray {
	inv := c.ViewProjection().Inv()
	far := unproject(inv, mgl64.Vec3{ndc.X(), ndc.Y(), 1})
	dir := far.Sub(c.Position)
	if l := dir.Len(); l > 0 {
		dir = dir.Mul(1 / l)
	}
	return Ray{Origin: c.Position, Direction: dir}
}

// ToNDC projects a world point to normalized device coordinates. The third
// component is depth; points behind the camera have w <= 0 and report ok false.
func (c Camera) ToNDC(p mgl64.Vec3) (ndc mgl64.Vec3, ok bool) {
	clip := c.ViewProjection().Mul4x1(p.Vec4(1))
	if clip.W() <= 0 {
		return mgl64.Vec3{}, false
	}
	return clip.Vec3().Mul(1 / clip.W()), true
}

func unproject(inv mgl64.Mat4, ndc mgl64.Vec3) mgl64.Vec3 {
	v := inv.Mul4x1(ndc.Vec4(1))
	if w := v.W(); w != 0 && !math.IsNaN(w) {
		return v.Vec3().Mul(1 / w)
	}
	return v.Vec3()
}
