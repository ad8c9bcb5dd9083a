package core

import "math"

// EarthRadiusKm is the mean Earth radius used for simple magnitude-based
// altitude estimates (kilometres).
const EarthRadiusKm = 6371.0

// Vec3 is a Cartesian vector in kilometres (or km/s when used as a velocity).
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// AltitudeAboveMeanRadius estimates altitude as the distance of position from
// the Earth's centre minus the mean Earth radius. It ignores the ellipsoid;
// use Geodetic for proper geodetic altitude.
func AltitudeAboveMeanRadius(position Vec3) float64 {
	return position.Norm() - EarthRadiusKm
}
