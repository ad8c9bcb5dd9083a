package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleHeader returns the OEM header block of the loaded dataset.
func (s *Server) handleHeader(ctx *gin.Context) {
	header, err := s.store.Header()
	if err != nil {
		failErr(ctx, err)
		return
	}
	if header == nil {
		header = map[string]string{}
	}
	ctx.JSON(http.StatusOK, header)
}

// handleMetadata returns the OEM metadata block of the loaded dataset.
func (s *Server) handleMetadata(ctx *gin.Context) {
	metadata, err := s.store.Metadata()
	if err != nil {
		failErr(ctx, err)
		return
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	ctx.JSON(http.StatusOK, metadata)
}

// handleComments returns the OEM comment lines of the loaded dataset.
func (s *Server) handleComments(ctx *gin.Context) {
	comments, err := s.store.Comments()
	if err != nil {
		failErr(ctx, err)
		return
	}
	if comments == nil {
		comments = []string{}
	}
	ctx.JSON(http.StatusOK, comments)
}
