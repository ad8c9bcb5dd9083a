package core

import (
	satellite "github.com/joshuaferrara/go-satellite"
)

// GeoPosition is a geodetic coordinate derived from an inertial state vector.
type GeoPosition struct {
	LatitudeDeg  float64
	LongitudeDeg float64
	AltitudeKm   float64
}

// Geodetic converts a record's inertial position to geodetic latitude,
// longitude (degrees) and altitude above the WGS84 ellipsoid (km). The
// rotation uses Greenwich mean sidereal time at the record's epoch, so the
// result is an approximation suitable for ground-track queries, not for
// precision frame work.
func Geodetic(sv StateVector) (GeoPosition, error) {
	if err := sv.Validate(); err != nil {
		return GeoPosition{}, err
	}

	t := sv.Epoch.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)

	eci := satellite.Vector3{X: sv.Position.X, Y: sv.Position.Y, Z: sv.Position.Z}
	altitude, _, ll := satellite.ECIToLLA(eci, gmst)
	deg := satellite.LatLongDeg(ll)

	return GeoPosition{
		LatitudeDeg:  deg.Latitude,
		LongitudeDeg: deg.Longitude,
		AltitudeKm:   altitude,
	}, nil
}
