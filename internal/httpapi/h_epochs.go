package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/signalsfoundry/iss-tracker/core"
)

// Wire shapes shared by the state-vector routes.
type vec3JSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type stateVectorJSON struct {
	Epoch    string   `json:"epoch"`
	Position vec3JSON `json:"position_km"`
	Velocity vec3JSON `json:"velocity_km_s"`
}

func toStateVectorJSON(sv core.StateVector) stateVectorJSON {
	return stateVectorJSON{
		Epoch:    core.FormatEpoch(sv.Epoch),
		Position: vec3JSON{X: sv.Position.X, Y: sv.Position.Y, Z: sv.Position.Z},
		Velocity: vec3JSON{X: sv.Velocity.X, Y: sv.Velocity.Y, Z: sv.Velocity.Z},
	}
}

// handleListEpochs returns the ascending epoch list, windowed by the optional
// limit and offset query parameters. limit=0 (or absent) reads to the end; an
// offset past the dataset yields an empty list, not an error.
func (s *Server) handleListEpochs(ctx *gin.Context) {
	epochs, err := s.store.Epochs()
	if err != nil {
		failErr(ctx, err)
		return
	}

	offset, ok := queryNonNegativeInt(ctx, "offset")
	if !ok {
		return
	}
	limit, ok := queryNonNegativeInt(ctx, "limit")
	if !ok {
		return
	}

	page := paginate(epochs, offset, limit)
	out := make([]string, 0, len(page))
	for _, epoch := range page {
		out = append(out, core.FormatEpoch(epoch))
	}
	ctx.JSON(http.StatusOK, out)
}

// handleGetEpoch returns the state vector stored at exactly the given epoch.
func (s *Server) handleGetEpoch(ctx *gin.Context) {
	sv, ok := s.lookupEpoch(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, toStateVectorJSON(sv))
}

// lookupEpoch parses the :epoch path parameter and fetches the matching
// vector. A malformed epoch reads as "no such epoch" rather than a contract
// error. On failure the response has already been written.
func (s *Server) lookupEpoch(ctx *gin.Context) (core.StateVector, bool) {
	raw := ctx.Param("epoch")
	epoch, err := core.ParseEpoch(raw)
	if err != nil {
		fail(ctx, http.StatusNotFound, fmt.Sprintf("%s: %s", core.ErrEpochNotFound.Error(), raw))
		return core.StateVector{}, false
	}

	sv, err := s.store.ByEpoch(epoch)
	if err != nil {
		failErr(ctx, err)
		return core.StateVector{}, false
	}
	return sv, true
}

// queryNonNegativeInt reads an optional integer query parameter, writing a
// 400 envelope when it is malformed or negative.
func queryNonNegativeInt(ctx *gin.Context, name string) (int, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		fail(ctx, http.StatusBadRequest, fmt.Sprintf("%s must be a non-negative integer", name))
		return 0, false
	}
	return v, true
}

func paginate(epochs []time.Time, offset, limit int) []time.Time {
	if offset >= len(epochs) {
		return nil
	}
	epochs = epochs[offset:]
	if limit > 0 && limit < len(epochs) {
		epochs = epochs[:limit]
	}
	return epochs
}
