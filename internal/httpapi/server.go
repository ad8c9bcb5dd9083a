// Package httpapi exposes the telemetry store over a REST surface.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/signalsfoundry/iss-tracker/core"
	"github.com/signalsfoundry/iss-tracker/internal/logging"
	"github.com/signalsfoundry/iss-tracker/internal/observability"
)

// PlaceResolver resolves geodetic coordinates to a human-readable place name.
// An empty name means the point matched no feature (open ocean).
type PlaceResolver interface {
	ReverseName(ctx context.Context, latDeg, lonDeg float64) (string, error)
}

// Server owns the route handlers. All state lives in the telemetry store; the
// server itself is stateless and safe for concurrent use.
type Server struct {
	store   *core.TelemetryStore
	places  PlaceResolver
	log     logging.Logger
	metrics *observability.APICollector
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the base logger used for request-scoped logging.
func WithLogger(log logging.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics attaches the Prometheus collector whose middleware instruments
// every route.
func WithMetrics(collector *observability.APICollector) Option {
	return func(s *Server) {
		s.metrics = collector
	}
}

// WithPlaceResolver enables reverse geocoding on location routes. Without a
// resolver those routes still serve coordinates, with the ocean fallback name.
func WithPlaceResolver(resolver PlaceResolver) Option {
	return func(s *Server) {
		s.places = resolver
	}
}

// NewServer builds a Server around the given store.
func NewServer(store *core.TelemetryStore, opts ...Option) *Server {
	s := &Server{
		store: store,
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the gin engine: recovery, request-id logging, metrics, and
// tracing middleware ahead of the route table.
func (s *Server) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.requestContext())
	if s.metrics != nil {
		engine.Use(s.metrics.Middleware())
	}
	engine.Use(s.tracing())
	engine.Use(corsHandler())

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/now", s.handleNow)
	engine.GET("/epochs", s.handleListEpochs)
	engine.GET("/epochs/:epoch", s.handleGetEpoch)
	engine.GET("/epochs/:epoch/location", s.handleEpochLocation)
	engine.GET("/epoch/:epoch/speed", s.handleEpochSpeed)
	engine.GET("/header", s.handleHeader)
	engine.GET("/metadata", s.handleMetadata)
	engine.GET("/comment", s.handleComments)

	return engine
}

func corsHandler() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Access-Control-Allow-Origin",
			"Authorization", "Access-Control-Allow-Headers",
			"Access-Control-Max-Age",
			"X-Requested-With", "Accept",
			"Content-Type", "X-Request-Id"},
		AllowCredentials: false,
	})
}

// handleHealthz reports readiness: 200 with dataset coverage once loaded,
// 503 before the first successful load.
func (s *Server) handleHealthz(ctx *gin.Context) {
	first, last, err := s.store.Range()
	if err != nil {
		failErr(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"vectors": s.store.Size(),
		"first":   core.FormatEpoch(first),
		"last":    core.FormatEpoch(last),
	})
}
