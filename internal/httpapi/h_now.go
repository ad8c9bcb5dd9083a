package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signalsfoundry/iss-tracker/core"
)

type nowResponse struct {
	stateVectorJSON
	SpeedKmS     float64      `json:"speed_km_s"`
	Extrapolated bool         `json:"extrapolated"`
	Location     locationJSON `json:"location"`
}

// handleNow returns the state vector nearest to the current moment, with its
// instantaneous speed and geodetic ground point. The extrapolated flag marks
// answers clamped to a dataset boundary.
func (s *Server) handleNow(ctx *gin.Context) {
	sv, extrapolated, err := s.store.NearestToNow()
	if err != nil {
		failErr(ctx, err)
		return
	}

	speed, err := sv.Speed()
	if err != nil {
		failErr(ctx, err)
		return
	}
	geo, err := core.Geodetic(sv)
	if err != nil {
		failErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, nowResponse{
		stateVectorJSON: toStateVectorJSON(sv),
		SpeedKmS:        speed,
		Extrapolated:    extrapolated,
		Location: locationJSON{
			Latitude:   geo.LatitudeDeg,
			Longitude:  geo.LongitudeDeg,
			AltitudeKm: geo.AltitudeKm,
		},
	})
}
