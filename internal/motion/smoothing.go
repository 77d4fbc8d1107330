// Package motion holds the per-frame animation curves for satellite markers.
//
// Markers chase their latest known position with frame-rate independent
// exponential smoothing: after t seconds the remaining distance has decayed by
// exp(-speed*t) regardless of how that time was sliced into frames. The curve
// is critically damped and never overshoots, so long frames at low frame rates
// only close more of the gap, never jump past the target.
package motion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultLerpSpeed is the smoothing rate in 1/s. Higher is snappier.
const DefaultLerpSpeed = 6.0

// Alpha returns the fraction of the remaining distance covered in dt seconds.
// It is 0 for dt <= 0 and approaches 1 as dt grows.
func Alpha(lerpSpeed, dt float64) float64 {
	if dt <= 0 || lerpSpeed <= 0 {
		return 0
	}
	return 1 - math.Exp(-lerpSpeed*dt)
}

// Smooth advances current toward target by one frame of dt seconds.
func Smooth(current, target mgl64.Vec3, lerpSpeed, dt float64) mgl64.Vec3 {
	k := Alpha(lerpSpeed, dt)
	if k == 0 {
		return current
	}
	return current.Add(target.Sub(current).Mul(k))
}
