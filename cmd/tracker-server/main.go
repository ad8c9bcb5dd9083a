package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/iss-tracker/core"
	"github.com/signalsfoundry/iss-tracker/internal/feed"
	"github.com/signalsfoundry/iss-tracker/internal/geocode"
	"github.com/signalsfoundry/iss-tracker/internal/httpapi"
	"github.com/signalsfoundry/iss-tracker/internal/logging"
	"github.com/signalsfoundry/iss-tracker/internal/observability"
)

// Config captures everything the server needs to start. Flag values override
// the YAML config file.
type Config struct {
	ListenAddress      string `yaml:"listen_address"`
	MetricsAddress     string `yaml:"metrics_address"`
	LogLevel           string `yaml:"log_level"`
	LogFormat          string `yaml:"log_format"`
	LogFile            string `yaml:"log_file"`
	FeedURL            string `yaml:"feed_url"`
	FeedSchedule       string `yaml:"feed_schedule"`
	FeedTimeoutSeconds int    `yaml:"feed_timeout_seconds"`
	GeocodeEnabled     bool   `yaml:"geocode_enabled"`
	GeocodeBaseURL     string `yaml:"geocode_base_url"`
}

func defaultConfig() Config {
	return Config{
		ListenAddress:      ":8080",
		MetricsAddress:     ":9090",
		LogLevel:           "info",
		LogFormat:          "text",
		FeedURL:            feed.DefaultFeedURL,
		FeedSchedule:       feed.DefaultSchedule,
		FeedTimeoutSeconds: 30,
		GeocodeEnabled:     true,
		GeocodeBaseURL:     geocode.DefaultBaseURL,
	}
}

func main() {
	listenAddr := flag.String("listen-addr", "", "TCP address the API server listens on (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	feedURL := flag.String("feed-url", "", "OEM feed URL (overrides config)")
	configPath := flag.String("config", "configs/tracker.yaml", "Path to a YAML config file")
	flag.Parse()

	bootLog := logging.NewFromEnv()
	cfg := loadConfig(bootLog, *configPath)
	if *listenAddr != "" {
		cfg.ListenAddress = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddress = *metricsAddr
	}
	if *feedURL != "" {
		cfg.FeedURL = *feedURL
	}

	log := logging.New(logging.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		File:      cfg.LogFile,
		AddSource: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run wires the store, feed refresher, geocoder, and HTTP servers, then
// serves until ctx is cancelled. The listener is passed in so tests can bind
// an ephemeral port.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	if strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewAPICollector(nil)
	if err != nil {
		return fmt.Errorf("init api metrics: %w", err)
	}
	feedMetrics, err := observability.NewFeedCollector(nil)
	if err != nil {
		return fmt.Errorf("init feed metrics: %w", err)
	}

	metricsSrv := serveMetrics(cfg.MetricsAddress, collector, log)

	store := core.NewTelemetryStore(core.WithMetricsRecorder(collector))

	client := feed.NewClient(&feed.Config{
		FeedURL: cfg.FeedURL,
		Timeout: time.Duration(cfg.FeedTimeoutSeconds) * time.Second,
	})
	refresher := feed.NewRefresher(client, store, cfg.FeedSchedule,
		feed.WithLogger(log),
		feed.WithMetricsRecorder(feedMetrics),
	)
	if err := refresher.Start(ctx); err != nil {
		return fmt.Errorf("start feed refresher: %w", err)
	}
	defer refresher.Stop()

	opts := []httpapi.Option{
		httpapi.WithLogger(log),
		httpapi.WithMetrics(collector),
	}
	if cfg.GeocodeEnabled {
		geocoder := geocode.New(&geocode.Config{BaseURL: cfg.GeocodeBaseURL})
		defer geocoder.Close()
		opts = append(opts, httpapi.WithPlaceResolver(geocoder))
	}
	api := httpapi.NewServer(store, opts...)

	httpSrv := &http.Server{Handler: api.Router()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(lis); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return httpSrv.Shutdown(shutdownCtx)
	})

	log.Info(ctx, "serving ISS telemetry API",
		logging.String("addr", lis.Addr().String()),
		logging.String("feed_url", cfg.FeedURL),
		logging.String("schedule", cfg.FeedSchedule),
	)
	return g.Wait()
}

// loadConfig overlays the YAML file onto the defaults. A missing or broken
// config file downgrades to defaults so the server can run from flags alone.
func loadConfig(log logging.Logger, path string) Config {
	cfg := defaultConfig()
	if path == "" {
		return cfg
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn(context.Background(), "skipping config file", logging.String("path", path), logging.Err(err))
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Warn(context.Background(), "failed to parse config file", logging.String("path", path), logging.Err(err))
		return defaultConfig()
	}
	return cfg
}

func serveMetrics(addr string, collector *observability.APICollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
