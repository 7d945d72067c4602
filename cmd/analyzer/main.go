// Command analyzer serves the earthquake proximity analysis API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/quake-insight-service/internal/adapter/faultlines"
	httpadapter "github.com/couchcryptid/quake-insight-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-insight-service/internal/adapter/kafka"
	"github.com/couchcryptid/quake-insight-service/internal/adapter/opencage"
	"github.com/couchcryptid/quake-insight-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-insight-service/internal/analyzer"
	"github.com/couchcryptid/quake-insight-service/internal/config"
	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/geodesy"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	metric, err := geodesy.ByName(cfg.DistanceMetric)
	if err != nil {
		logger.Error("invalid distance metric", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Both datasets are read once. Failures degrade answers instead of
	// preventing startup.
	faults := faultlines.Load(cfg.FaultLinesPath, logger)

	var quakes []domain.EarthquakeRecord
	snapshot, err := usgs.NewClient(cfg.EarthquakeFeedURL, cfg.FeedTimeout, metrics, logger).FetchRecent(ctx)
	if err != nil {
		logger.Error("failed to fetch earthquake feed", "url", cfg.EarthquakeFeedURL, "error", err)
	} else {
		quakes = snapshot.Records
	}

	// Initialize geocoder (feature-flagged via OPENCAGE_ENABLED / OPENCAGE_API_KEY).
	var geocoder domain.Geocoder
	if cfg.OpenCageEnabled {
		client := opencage.NewClient(cfg.OpenCageAPIKey, cfg.OpenCageTimeout, metrics, logger)
		geocoder = opencage.NewCachedGeocoder(client, cfg.OpenCageCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("opencage geocoding enabled", "cache_size", cfg.OpenCageCacheSize, "timeout", cfg.OpenCageTimeout)
	} else {
		logger.Info("opencage geocoding disabled")
	}

	a := analyzer.New(faults, quakes, geocoder, metric, logger, metrics)

	var publisher httpadapter.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaInsightsTopic, logger)
		publisher = writer
		logger.Info("insight publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaInsightsTopic)
	}

	srv := httpadapter.NewAnalyzerServer(cfg.AnalyzerHTTPAddr, a, publisher, metrics, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
