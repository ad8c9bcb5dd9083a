package httpapi

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/iss-tracker/internal/logging"
)

const requestIDHeader = "X-Request-Id"

const tracerName = "github.com/signalsfoundry/iss-tracker/internal/httpapi"

// requestContext ensures a request_id is present on the request context,
// sourcing it from the inbound X-Request-Id header if provided, attaches a
// per-request logger annotated with request_id, method, and path, and echoes
// the ID back to the caller.
func (s *Server) requestContext() gin.HandlerFunc {
	base := s.log
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx *gin.Context) {
		reqCtx := ctx.Request.Context()
		if incoming := ctx.GetHeader(requestIDHeader); incoming != "" {
			reqCtx = logging.ContextWithRequestID(reqCtx, incoming)
		}

		reqCtx, reqLog := logging.WithRequestLogger(reqCtx, base.With(
			logging.String("method", ctx.Request.Method),
			logging.String("path", ctx.Request.URL.Path),
		))
		reqCtx = logging.ContextWithLogger(reqCtx, reqLog)

		ctx.Header(requestIDHeader, logging.RequestIDFromContext(reqCtx))
		ctx.Request = ctx.Request.WithContext(reqCtx)
		ctx.Next()
	}
}

// tracing enriches request spans with standard attributes and ensures a
// server span exists when no tracing-aware proxy created one upstream.
func (s *Server) tracing() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)

	return func(ctx *gin.Context) {
		reqCtx := ctx.Request.Context()
		route := ctx.FullPath()
		if route == "" {
			route = ctx.Request.URL.Path
		}
		spanName := fmt.Sprintf("API %s %s", ctx.Request.Method, route)

		span := trace.SpanFromContext(reqCtx)
		created := false
		if !span.SpanContext().IsValid() {
			reqCtx, span = tracer.Start(reqCtx, spanName, trace.WithSpanKind(trace.SpanKindServer))
			created = true
		} else {
			span.SetName(spanName)
		}

		attrs := []attribute.KeyValue{
			attribute.String("http.method", ctx.Request.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", ctx.Request.URL.Path),
		}
		if reqID := logging.RequestIDFromContext(reqCtx); reqID != "" {
			attrs = append(attrs, attribute.String("request_id", reqID))
		}
		span.SetAttributes(attrs...)

		ctx.Request = ctx.Request.WithContext(reqCtx)
		ctx.Next()

		span.SetAttributes(attribute.Int("http.status_code", ctx.Writer.Status()))
		if created {
			span.End()
		}
	}
}
