// Package geo maps geodetic coordinates onto the display globe.
//
// The globe is a sphere of arbitrary scene radius. Altitude scales the radius
// linearly against a reference Earth radius in kilometres, so a satellite at
// 6371 km altitude sits at twice the globe radius. Longitude is negated before
// the conversion so that east-positive longitudes appear counter-clockwise
// when viewed from +Y, matching the viewer's right-handed camera.
//
// Axis layout (scene units):
//
//	x = r cos(lat) cos(-lon)
//	y = r sin(lat)
//	z = r cos(lat) sin(-lon)
//
// Markers and orbit polylines both go through Project, so the two never drift
// apart on screen.
package geo

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// EarthRadiusKm is the mean Earth radius the altitude scale is measured against.
const EarthRadiusKm = 6371.0

// LatLon is a sub-point on the reference surface, in degrees.
type LatLon struct {
	Lat float64
	Lon float64
}

// Project converts latitude/longitude (degrees) and altitude (km) to a scene
// point on or above a globe of radius refRadius.
func Project(latDeg, lonDeg, altKm, refRadius float64) mgl64.Vec3 {
	return ProjectWithRadius(latDeg, lonDeg, altKm, refRadius, EarthRadiusKm)
}

// ProjectWithRadius is Project with an explicit reference radius in km.
func ProjectWithRadius(latDeg, lonDeg, altKm, refRadius, refRadiusKm float64) mgl64.Vec3 {
	r := refRadius * (1 + altKm/refRadiusKm)
	lat := latDeg * math.Pi / 180.0
	lon := -lonDeg * math.Pi / 180.0

	cosLat, sinLat := math.Cos(lat), math.Sin(lat)
	cosLon, sinLon := math.Cos(lon), math.Sin(lon)

	return mgl64.Vec3{
		r * cosLat * cosLon,
		r * sinLat,
		r * cosLat * sinLon,
	}
}

// OrbitRadius returns the scene radius of a shell at altKm above a globe of
// radius refRadius.
func OrbitRadius(altKm, refRadius float64) float64 {
	return refRadius * (1 + altKm/EarthRadiusKm)
}

// Unproject is the inverse of Project. The origin maps to lat 0, lon 0 at
// altitude -EarthRadiusKm.
func Unproject(p mgl64.Vec3, refRadius float64) (latDeg, lonDeg, altKm float64) {
	r := p.Len()
	if r == 0 || refRadius == 0 {
		return 0, 0, -EarthRadiusKm
	}
	latDeg = math.Asin(clamp(p.Y()/r, -1, 1)) * 180.0 / math.Pi
	lonDeg = -math.Atan2(p.Z(), p.X()) * 180.0 / math.Pi
	if lonDeg == -180 {
		lonDeg = 180
	}
	altKm = (r/refRadius - 1) * EarthRadiusKm
	return latDeg, lonDeg, altKm
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
