// Package commands implements the operator CLI of the reconciliation pipeline.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"example.com/endurance/internal/config"
	"example.com/endurance/internal/observability"
	"example.com/endurance/internal/persistence/csvstore"
	"example.com/endurance/internal/pipeline"
	"example.com/endurance/internal/publish"
)

var (
	cfg    config.Config
	logger *slog.Logger

	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:           "pipeline",
	Short:         "pipeline reconciles scraped athlete activities into the activity store and metadata tables.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}
		logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error). Overrides LOG_LEVEL.")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text or json). Overrides LOG_FORMAT.")
}

// ExecuteContext runs the CLI and exits non-zero on failure.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newStore() *csvstore.Store {
	return csvstore.New(csvstore.Paths{
		Activities: cfg.ActivitiesPath,
		Metadata:   cfg.MetadataPath,
		Master:     cfg.MasterPath,
	}, csvstore.WithLogger(logger.With("component", "csvstore")))
}

// newPipeline wires the pipeline over the configured store. Without brokers runs are not
// announced; the returned close func releases the producer.
func newPipeline() (*pipeline.Pipeline, func()) {
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithCounterColumn(cfg.WeeksScrapedColumn),
	}
	closer := func() {}
	if len(cfg.KafkaBrokers) > 0 {
		producer := publish.NewKafkaProducer(cfg.KafkaBrokers)
		opts = append(opts, pipeline.WithPublisher(publish.NewPublisher(producer, cfg.IngestionTopic,
			publish.WithLogger(logger.With("component", "publisher")))))
		closer = func() {
			if err := producer.Close(); err != nil {
				logger.Warn("close kafka producer", "error", err)
			}
		}
	} else {
		logger.Debug("no kafka brokers configured, run events disabled")
		opts = append(opts, pipeline.WithPublisher(publish.Noop{}))
	}
	return pipeline.New(newStore(), opts...), closer
}

// withRunLock holds the run lock for the duration of fn so overlapping operator runs fail fast.
func withRunLock(fn func() error) error {
	release, err := csvstore.AcquireLock(cfg.RunLockPath)
	if err != nil {
		if errors.Is(err, csvstore.ErrLocked) {
			return fmt.Errorf("another run holds %s: %w", cfg.RunLockPath, err)
		}
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warn("release run lock", "path", cfg.RunLockPath, "error", err)
		}
	}()
	return fn()
}

func pushMetrics(ctx context.Context, job string) {
	host, _ := os.Hostname()
	if err := observability.Push(ctx, cfg.PushgatewayURL, job, host); err != nil {
		logger.Warn("metrics not pushed", "error", err)
	}
}
