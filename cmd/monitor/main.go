package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/enviro-quality-etl/internal/adapter/geo"
	httpadapter "github.com/couchcryptid/enviro-quality-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/enviro-quality-etl/internal/adapter/kafka"
	"github.com/couchcryptid/enviro-quality-etl/internal/alerting"
	"github.com/couchcryptid/enviro-quality-etl/internal/config"
	"github.com/couchcryptid/enviro-quality-etl/internal/domain"
	"github.com/couchcryptid/enviro-quality-etl/internal/observability"
	"github.com/couchcryptid/enviro-quality-etl/internal/pipeline"
	"github.com/couchcryptid/enviro-quality-etl/internal/predict"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogFormat, cfg.LogLevel)
	metrics := observability.NewMetrics()

	// Station location lookup (feature-flagged via GEO_ENABLED / GEO_API_KEY).
	var locator domain.StationLocator
	if cfg.GeoEnabled {
		client := geo.NewClient(cfg.GeoAPIKey, cfg.GeoTimeout, metrics, logger)
		locator = geo.NewCachedLocator(client, cfg.GeoCacheSize, metrics)
		metrics.LocatorEnabled.Set(1)
		logger.Info("station location lookup enabled", "cache_size", cfg.GeoCacheSize, "timeout", cfg.GeoTimeout)
	} else {
		logger.Info("station location lookup disabled")
	}

	predictor := loadPredictor(cfg, logger)

	store := alerting.NewStore(nil)
	store.OnSizeChange(func(n int) { metrics.ActiveAlerts.Set(float64(n)) })
	evaluator := alerting.NewEvaluator(store, logger)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	alertWriter := kafkaadapter.NewAlertWriter(cfg, logger)
	transformer := pipeline.NewTransformer(evaluator, predictor, locator, logger)

	p := pipeline.New(reader, transformer, writer, alertWriter, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if err := alertWriter.Close(); err != nil {
		logger.Error("kafka alert writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// loadPredictor fetches the fitted model from Redis. A missing or unreachable
// model disables prediction rather than failing startup.
func loadPredictor(cfg *config.Config, logger *slog.Logger) *predict.Adapter {
	if !cfg.PredictEnabled {
		logger.Info("index prediction disabled")
		return nil
	}

	store := predict.NewRedisStore(cfg.RedisAddr, cfg.ModelKey)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("redis close error", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stored, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, predict.ErrModelNotFound) {
			logger.Warn("no fitted model stored, prediction disabled", "key", cfg.ModelKey)
		} else {
			logger.Warn("model load failed, prediction disabled", "error", err)
		}
		return nil
	}

	logger.Info("fitted model loaded",
		"key", cfg.ModelKey,
		"features", stored.Features,
		"target", stored.Target,
		"trained_at", stored.TrainedAt,
	)
	return predict.NewAdapterFromStored(stored, logger)
}
