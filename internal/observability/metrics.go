package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APICollector bundles Prometheus metrics for the HTTP API surface and the
// currently loaded trajectory dataset.
type APICollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	DatasetVectors prometheus.Gauge
	DatasetStart   prometheus.Gauge
	DatasetEnd     prometheus.Gauge
	DatasetLoaded  prometheus.Gauge
}

// NewAPICollector registers API Prometheus metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewAPICollector(reg prometheus.Registerer) (*APICollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Total number of handled API requests, labeled by route, method, and HTTP status.",
	}, []string{"route", "method", "status"})
	requests, err := registerCounterVec(reg, requests, "api_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route", "method"})
	durations, err = registerHistogramVec(reg, durations, "api_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	vectors, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dataset_state_vectors",
		Help: "Number of state vectors in the currently loaded dataset.",
	}), "dataset_state_vectors")
	if err != nil {
		return nil, err
	}
	start, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dataset_start_timestamp_seconds",
		Help: "First epoch covered by the loaded dataset, as a Unix timestamp.",
	}), "dataset_start_timestamp_seconds")
	if err != nil {
		return nil, err
	}
	end, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dataset_end_timestamp_seconds",
		Help: "Last epoch covered by the loaded dataset, as a Unix timestamp.",
	}), "dataset_end_timestamp_seconds")
	if err != nil {
		return nil, err
	}
	loaded, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dataset_loaded_timestamp_seconds",
		Help: "Wall-clock time of the most recent successful dataset load.",
	}), "dataset_loaded_timestamp_seconds")
	if err != nil {
		return nil, err
	}

	return &APICollector{
		gatherer:       gatherer,
		HTTPRequests:   requests,
		HTTPDurations:  durations,
		DatasetVectors: vectors,
		DatasetStart:   start,
		DatasetEnd:     end,
		DatasetLoaded:  loaded,
	}, nil
}

// Middleware records request counts and durations for every routed request.
func (c *APICollector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		if c == nil {
			return
		}

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method

		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(ctx.Writer.Status())).Inc()
		}
		if c.HTTPDurations != nil {
			c.HTTPDurations.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		}
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *APICollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetDatasetStats satisfies the DatasetMetricsRecorder interface so the
// TelemetryStore can drive gauge values directly from its load path.
func (c *APICollector) SetDatasetStats(vectors int, first, last time.Time) {
	if c == nil {
		return
	}
	if c.DatasetVectors != nil {
		c.DatasetVectors.Set(float64(vectors))
	}
	if c.DatasetStart != nil {
		c.DatasetStart.Set(float64(first.Unix()))
	}
	if c.DatasetEnd != nil {
		c.DatasetEnd.Set(float64(last.Unix()))
	}
	if c.DatasetLoaded != nil {
		c.DatasetLoaded.SetToCurrentTime()
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
