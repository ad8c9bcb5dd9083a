package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleEpochSpeed returns the scalar speed (km/s) of the vector at the given
// epoch as plain text.
func (s *Server) handleEpochSpeed(ctx *gin.Context) {
	sv, ok := s.lookupEpoch(ctx)
	if !ok {
		return
	}

	speed, err := sv.Speed()
	if err != nil {
		failErr(ctx, err)
		return
	}
	ctx.String(http.StatusOK, "%.6f\n", speed)
}
