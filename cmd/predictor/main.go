// Command predictor serves the earthquake prediction API.
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

	httpadapter "github.com/couchcryptid/quake-insight-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-insight-service/internal/adapter/kafka"
	"github.com/couchcryptid/quake-insight-service/internal/adapter/mlserver"
	"github.com/couchcryptid/quake-insight-service/internal/config"
	"github.com/couchcryptid/quake-insight-service/internal/domain"
	"github.com/couchcryptid/quake-insight-service/internal/model"
	"github.com/couchcryptid/quake-insight-service/internal/observability"
	"github.com/couchcryptid/quake-insight-service/internal/predictor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// A missing or corrupt model is not fatal: the service starts and
	// answers /predict with an inference error until it is fixed.
	var classifier domain.Classifier
	if cfg.ModelURL != "" {
		classifier = mlserver.NewClient(cfg.ModelURL, cfg.ModelTimeout, logger)
		logger.Info("using remote classifier", "url", cfg.ModelURL, "timeout", cfg.ModelTimeout)
	} else if m, err := model.Load(cfg.ModelPath); err != nil {
		logger.Error("failed to load model", "path", cfg.ModelPath, "error", err)
	} else {
		classifier = m
		logger.Info("model loaded", "path", cfg.ModelPath, "kind", m.Kind())
	}

	p := predictor.New(cfg.TransformParams, classifier, logger, metrics)

	var publisher httpadapter.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaInsightsTopic, logger)
		publisher = writer
		logger.Info("insight publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaInsightsTopic)
	}

	srv := httpadapter.NewPredictorServer(cfg.PredictorHTTPAddr, p, publisher, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
