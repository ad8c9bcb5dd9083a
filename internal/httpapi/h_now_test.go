package httpapi

import (
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/signalsfoundry/iss-tracker/core"
)

func TestNowPicksNearestVector(t *testing.T) {
	engine, store := newRouter(t)
	mustLoad(t, store)

	rr := doGET(t, engine, "/now")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /now = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}

	var body struct {
		Epoch        string  `json:"epoch"`
		SpeedKmS     float64 `json:"speed_km_s"`
		Extrapolated bool    `json:"extrapolated"`
		Location     struct {
			Latitude   float64 `json:"latitude"`
			Longitude  float64 `json:"longitude"`
			AltitudeKm float64 `json:"altitude_km"`
		} `json:"location"`
	}
	decodeJSON(t, rr, &body)

	if body.Epoch != core.FormatEpoch(epoch2) {
		t.Fatalf("epoch = %q, want %q", body.Epoch, core.FormatEpoch(epoch2))
	}
	if body.SpeedKmS != 5 {
		t.Fatalf("speed_km_s = %v, want 5", body.SpeedKmS)
	}
	if body.Extrapolated {
		t.Fatal("extrapolated = true for an in-range moment")
	}

	// epoch2 lies in the equatorial plane at radius 6771 km.
	if math.Abs(body.Location.Latitude) > 1e-6 {
		t.Fatalf("latitude = %v, want ~0", body.Location.Latitude)
	}
	if math.Abs(body.Location.AltitudeKm-(6771-6378.137)) > 1e-3 {
		t.Fatalf("altitude_km = %v", body.Location.AltitudeKm)
	}
	if body.Location.Longitude < -180 || body.Location.Longitude > 180 {
		t.Fatalf("longitude = %v out of range", body.Location.Longitude)
	}
}

func TestNowFlagsExtrapolationOutsideRange(t *testing.T) {
	engine, store := newRouterWithClock(t, epoch1.Add(-2*time.Hour))
	mustLoad(t, store)

	rr := doGET(t, engine, "/now")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /now = %d, want 200", rr.Code)
	}

	var body struct {
		Epoch        string `json:"epoch"`
		Extrapolated bool   `json:"extrapolated"`
	}
	decodeJSON(t, rr, &body)
	if body.Epoch != core.FormatEpoch(epoch1) {
		t.Fatalf("epoch = %q, want boundary %q", body.Epoch, core.FormatEpoch(epoch1))
	}
	if !body.Extrapolated {
		t.Fatal("extrapolated = false for a moment before the dataset")
	}
}
