package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FeedCollector exposes feed-refresh Prometheus metrics.
type FeedCollector struct {
	gatherer prometheus.Gatherer

	FetchDuration    prometheus.Histogram
	RefreshSuccesses prometheus.Counter
	RefreshFailures  prometheus.Counter
	LastSuccess      prometheus.Gauge
}

// NewFeedCollector registers feed metrics against the provided registerer.
func NewFeedCollector(reg prometheus.Registerer) (*FeedCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	fetchHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_fetch_duration_seconds",
		Help:    "Duration of OEM feed fetch-and-parse cycles.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})
	fetchHistogram, err := registerHistogram(reg, fetchHistogram, "feed_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	successes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_refresh_success_total",
		Help: "Cumulative number of successful feed refreshes.",
	})
	successes, err = registerCounter(reg, successes, "feed_refresh_success_total")
	if err != nil {
		return nil, err
	}

	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_refresh_failure_total",
		Help: "Cumulative number of failed feed refreshes.",
	})
	failures, err = registerCounter(reg, failures, "feed_refresh_failure_total")
	if err != nil {
		return nil, err
	}

	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_last_success_timestamp_seconds",
		Help: "Wall-clock time of the most recent successful feed refresh.",
	})
	lastSuccess, err = registerGauge(reg, lastSuccess, "feed_last_success_timestamp_seconds")
	if err != nil {
		return nil, err
	}

	return &FeedCollector{
		gatherer:         gatherer,
		FetchDuration:    fetchHistogram,
		RefreshSuccesses: successes,
		RefreshFailures:  failures,
		LastSuccess:      lastSuccess,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *FeedCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveFetchDuration records one fetch-and-parse cycle duration.
func (c *FeedCollector) ObserveFetchDuration(d time.Duration) {
	if c == nil || c.FetchDuration == nil {
		return
	}
	c.FetchDuration.Observe(d.Seconds())
}

// IncRefreshSuccess counts a successful refresh and stamps its time.
func (c *FeedCollector) IncRefreshSuccess() {
	if c == nil {
		return
	}
	if c.RefreshSuccesses != nil {
		c.RefreshSuccesses.Inc()
	}
	if c.LastSuccess != nil {
		c.LastSuccess.SetToCurrentTime()
	}
}

// IncRefreshFailure counts a refresh that left the previous dataset serving.
func (c *FeedCollector) IncRefreshFailure() {
	if c == nil || c.RefreshFailures == nil {
		return
	}
	c.RefreshFailures.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
