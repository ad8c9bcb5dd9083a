package core

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidVector indicates a state vector carrying NaN or infinite
// components.
var ErrInvalidVector = errors.New("invalid state vector")

// StateVector is one sampled trajectory record: the spacecraft's position and
// velocity at a given epoch. Position is in kilometres and velocity in
// kilometres per second, both in the dataset's reference frame (J2000 for the
// NASA OEM feed). Records are immutable once loaded.
type StateVector struct {
	Epoch    time.Time
	Position Vec3
	Velocity Vec3
}

// Speed returns the magnitude of the velocity vector in km/s.
func (sv StateVector) Speed() (float64, error) {
	if !finite(sv.Velocity) {
		return 0, fmt.Errorf("%w: non-finite velocity at %s", ErrInvalidVector, FormatEpoch(sv.Epoch))
	}
	return sv.Velocity.Norm(), nil
}

// Validate reports ErrInvalidVector when any component is NaN or infinite.
func (sv StateVector) Validate() error {
	if !finite(sv.Position) || !finite(sv.Velocity) {
		return fmt.Errorf("%w: non-finite components at %s", ErrInvalidVector, FormatEpoch(sv.Epoch))
	}
	return nil
}

func finite(v Vec3) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
