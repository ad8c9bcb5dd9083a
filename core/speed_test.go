package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestSpeedPythagorean(t *testing.T) {
	sv := StateVector{
		Epoch:    time.Date(2024, time.March, 7, 8, 0, 0, 0, time.UTC),
		Velocity: Vec3{X: 3, Y: 4, Z: 0},
	}
	got, err := sv.Speed()
	if err != nil {
		t.Fatalf("Speed error: %v", err)
	}
	if got != 5 {
		t.Fatalf("Speed = %v, want 5", got)
	}
}

func TestSpeedZeroVelocity(t *testing.T) {
	sv := StateVector{Epoch: time.Now()}
	got, err := sv.Speed()
	if err != nil {
		t.Fatalf("Speed error: %v", err)
	}
	if got != 0 {
		t.Fatalf("Speed = %v, want 0", got)
	}
}

func TestSpeedRejectsNonFinite(t *testing.T) {
	sv := StateVector{Velocity: Vec3{X: math.NaN()}}
	if _, err := sv.Speed(); !errors.Is(err, ErrInvalidVector) {
		t.Fatalf("Speed error = %v, want ErrInvalidVector", err)
	}

	sv = StateVector{Velocity: Vec3{Z: math.Inf(-1)}}
	if _, err := sv.Speed(); !errors.Is(err, ErrInvalidVector) {
		t.Fatalf("Speed error = %v, want ErrInvalidVector", err)
	}
}

func TestAverageSpeed(t *testing.T) {
	base := time.Date(2024, time.March, 7, 8, 0, 0, 0, time.UTC)
	records := []StateVector{
		{Epoch: base, Velocity: Vec3{X: 3, Y: 4, Z: 0}},                      // 5
		{Epoch: base.Add(time.Minute), Velocity: Vec3{X: 0, Y: 0, Z: 7}},     // 7
		{Epoch: base.Add(2 * time.Minute), Velocity: Vec3{X: 6, Y: 0, Z: 0}}, // 6
	}

	got, err := AverageSpeed(records)
	if err != nil {
		t.Fatalf("AverageSpeed error: %v", err)
	}
	if !almostEqual(got, 6, 1e-12) {
		t.Fatalf("AverageSpeed = %v, want 6", got)
	}
}

func TestAverageSpeedEmpty(t *testing.T) {
	if _, err := AverageSpeed(nil); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("AverageSpeed(nil) error = %v, want ErrEmptyDataset", err)
	}
}

func TestAverageSpeedPropagatesInvalidVector(t *testing.T) {
	records := []StateVector{
		{Velocity: Vec3{X: 1}},
		{Velocity: Vec3{Y: math.NaN()}},
	}
	if _, err := AverageSpeed(records); !errors.Is(err, ErrInvalidVector) {
		t.Fatalf("AverageSpeed error = %v, want ErrInvalidVector", err)
	}
}
