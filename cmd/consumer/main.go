package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/endurance/internal/config"
	"example.com/endurance/internal/consumer"
	"example.com/endurance/internal/mirror"
	"example.com/endurance/internal/observability"
	"example.com/endurance/internal/persistence/csvstore"
	"example.com/endurance/internal/persistence/postgres"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "endurance-consumer")

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("prepare mirror schema", "error", err)
		os.Exit(1)
	}

	store := csvstore.New(csvstore.Paths{
		Activities: cfg.ActivitiesPath,
		Metadata:   cfg.MetadataPath,
		Master:     cfg.MasterPath,
	}, csvstore.WithLogger(logger.With("component", "csvstore")))
	refresher := mirror.New(store, repo, mirror.WithLogger(logger.With("component", "mirror")))

	handler := consumer.Chain{
		consumer.NewPersistenceHandler(repo),
		consumer.NewMirrorHandler(refresher, logger.With("component", "mirror-handler")),
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", "address", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.ConsumerGroupID,
		Topic:    cfg.IngestionTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger.With("component", "consumer")))
	logger.Info("consuming run events", "topic", cfg.IngestionTopic, "group", cfg.ConsumerGroupID)
	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
	}

	logger.Info("consumer shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", "error", err)
	}
}
