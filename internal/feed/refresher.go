package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/signalsfoundry/iss-tracker/core"
	"github.com/signalsfoundry/iss-tracker/internal/logging"
)

// DefaultSchedule matches the feed's publication cadence of a few updates per
// week; fetching more often than every few hours buys nothing.
const DefaultSchedule = "@every 6h"

// Each scheduled refresh gets a bounded context so a wedged download cannot
// pile up cron runs.
const refreshTimeout = 2 * time.Minute

// MetricsRecorder receives refresh cycle observations. A nil recorder is
// valid and records nothing.
type MetricsRecorder interface {
	ObserveFetchDuration(d time.Duration)
	IncRefreshSuccess()
	IncRefreshFailure()
}

// Refresher keeps a TelemetryStore loaded from the OEM feed on a cron
// schedule. A failed refresh leaves the previously installed dataset serving;
// only a fully parsed and validated replacement is swapped in.
type Refresher struct {
	client   *Client
	store    *core.TelemetryStore
	schedule string
	log      logging.Logger
	metrics  MetricsRecorder
	crons    *cron.Cron
}

// RefresherOption customises a Refresher.
type RefresherOption func(*Refresher)

// WithLogger sets the refresher's logger.
func WithLogger(log logging.Logger) RefresherOption {
	return func(r *Refresher) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder for refresh outcomes.
func WithMetricsRecorder(rec MetricsRecorder) RefresherOption {
	return func(r *Refresher) {
		r.metrics = rec
	}
}

// NewRefresher wires a client to a store. An empty schedule selects
// DefaultSchedule; the schedule string is validated in Start.
func NewRefresher(client *Client, store *core.TelemetryStore, schedule string, opts ...RefresherOption) *Refresher {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	r := &Refresher{
		client:   client,
		store:    store,
		schedule: schedule,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs one immediate refresh and then schedules recurring ones. A
// failed initial refresh is logged, not returned; the caller serves 503s
// until a later refresh succeeds. Only an unparseable schedule is fatal.
func (r *Refresher) Start(ctx context.Context) error {
	r.crons = cron.New(cron.WithLocation(time.UTC))
	if _, err := r.crons.AddFunc(r.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		_ = r.RefreshOnce(runCtx)
	}); err != nil {
		return fmt.Errorf("feed schedule %q: %w", r.schedule, err)
	}

	if err := r.RefreshOnce(ctx); err != nil {
		r.log.Warn(ctx, "initial feed refresh failed; serving resumes after next success",
			logging.String("schedule", r.schedule),
			logging.Err(err),
		)
	}

	r.crons.Start()
	return nil
}

// Stop halts the schedule and waits for an in-flight refresh to finish.
func (r *Refresher) Stop() {
	if r == nil || r.crons == nil {
		return
	}
	stopCtx := r.crons.Stop()
	<-stopCtx.Done()
}

// RefreshOnce performs a single fetch-parse-load cycle.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	start := time.Now()
	ds, err := r.client.FetchDataset(ctx)
	if r.metrics != nil {
		r.metrics.ObserveFetchDuration(time.Since(start))
	}
	if err == nil {
		err = r.store.LoadDataset(ds)
	}
	if err != nil {
		if r.metrics != nil {
			r.metrics.IncRefreshFailure()
		}
		r.log.Error(ctx, "feed refresh failed", logging.Err(err))
		return err
	}

	if r.metrics != nil {
		r.metrics.IncRefreshSuccess()
	}
	r.log.Info(ctx, "feed refresh complete",
		logging.Int("vectors", r.store.Size()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}
