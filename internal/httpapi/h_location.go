package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signalsfoundry/iss-tracker/core"
	"github.com/signalsfoundry/iss-tracker/internal/logging"
)

// OceanFallback is the place name served when reverse geocoding resolves no
// feature under the ground point.
const OceanFallback = "Over the ocean"

type locationJSON struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeKm float64 `json:"altitude_km"`
}

type locationResponse struct {
	Epoch string `json:"epoch"`
	locationJSON
	Place string `json:"place"`
}

// handleEpochLocation returns the geodetic ground point under the vector at
// the given epoch, with a reverse-geocoded place name.
func (s *Server) handleEpochLocation(ctx *gin.Context) {
	sv, ok := s.lookupEpoch(ctx)
	if !ok {
		return
	}

	geo, err := core.Geodetic(sv)
	if err != nil {
		failErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, locationResponse{
		Epoch: core.FormatEpoch(sv.Epoch),
		locationJSON: locationJSON{
			Latitude:   geo.LatitudeDeg,
			Longitude:  geo.LongitudeDeg,
			AltitudeKm: geo.AltitudeKm,
		},
		Place: s.resolvePlace(ctx, geo),
	})
}

// resolvePlace degrades to the ocean fallback when no resolver is wired, the
// point matches no feature, or the lookup fails. Geocoding problems never
// fail the route.
func (s *Server) resolvePlace(ctx *gin.Context, geo core.GeoPosition) string {
	if s.places == nil {
		return OceanFallback
	}

	reqCtx := ctx.Request.Context()
	name, err := s.places.ReverseName(reqCtx, geo.LatitudeDeg, geo.LongitudeDeg)
	if err != nil {
		if log := logging.LoggerFromContext(reqCtx); log != nil {
			log.Warn(reqCtx, "reverse geocode failed", logging.Err(err))
		}
		return OceanFallback
	}
	if name == "" {
		return OceanFallback
	}
	return name
}
