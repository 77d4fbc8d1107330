package motion

import "math"

// PulseHz is the breathing rate of a selected marker's halo.
const PulseHz = 1.0

// Pulse returns the halo scale factor and opacity t seconds into a selection.
// Scale oscillates in [0.75, 1.45] and opacity in [0.25, 0.60], in phase.
func Pulse(t float64) (scale, opacity float64) {
	s := math.Sin(2 * math.Pi * PulseHz * t)
	scale = 0.75 + 0.35*(1+s)
	opacity = 0.25 + 0.35*(0.5+0.5*s)
	return scale, opacity
}
