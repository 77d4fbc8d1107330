package geo

import "math"

// SplitAntimeridian cuts an ordered track into runs wherever two consecutive
// longitudes differ by more than 180 degrees. Drawing each run as its own
// polyline avoids a chord across the globe at the ±180° seam.
//
// The returned runs share no backing array with points. Runs may hold a
// single point; callers that render lines drop those.
func SplitAntimeridian(points []LatLon) [][]LatLon {
	if len(points) == 0 {
		return nil
	}

	var runs [][]LatLon
	run := []LatLon{points[0]}
	for i := 1; i < len(points); i++ {
		if math.Abs(points[i].Lon-points[i-1].Lon) > 180 {
			runs = append(runs, run)
			run = nil
		}
		run = append(run, points[i])
	}
	return append(runs, run)
}
