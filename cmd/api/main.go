package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/endurance/internal/api"
	"example.com/endurance/internal/auth"
	"example.com/endurance/internal/config"
	"example.com/endurance/internal/observability"
	"example.com/endurance/internal/persistence/postgres"
	httptransport "example.com/endurance/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "endurance-api")

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

	handler := api.NewHandler(repo,
		api.WithLogger(logger.With("component", "api")),
		api.WithMaxLimit(cfg.MaxActivities),
	)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.RequestLogger(logger.With("component", "http")),
		httptransport.CORS(cfg.CORSOrigin),
		authMiddleware.Wrap,
	))

	go func() {
		logger.Info("api listening", "address", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("api shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
}
