package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signalsfoundry/iss-tracker/core"
)

// statusFromError maps store errors onto HTTP statuses. A store with no
// dataset is an availability problem; a missing or malformed epoch is a
// lookup miss; everything else is internal.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, core.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrEpochNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the failure envelope with an explicit status.
func fail(ctx *gin.Context, code int, reason string) {
	ctx.JSON(code, gin.H{"success": false, "reason": reason})
}

// failErr writes the failure envelope with the status mapped from err.
func failErr(ctx *gin.Context, err error) {
	fail(ctx, statusFromError(err), err.Error())
}
