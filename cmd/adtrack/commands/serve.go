package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adtrack/adtrack/pkg/api"
	"github.com/adtrack/adtrack/pkg/config"
	"github.com/adtrack/adtrack/pkg/diagnose"
	"github.com/adtrack/adtrack/pkg/stores"
	"github.com/adtrack/adtrack/pkg/telemetry"
	"github.com/adtrack/adtrack/pkg/tracker"
)

func newServeCommand() *cobra.Command {
	var (
		addr    string
		archive string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tracking service and dashboard API",
		Long: `Start the operation tracking service.

The service hosts:
  - The in-memory tracking core (operation lifecycle, logs, restore points)
  - The notification bus feeding dashboard subscribers
  - The SQLite archive persisting operation snapshots
  - The HTTP API for listing, inspecting, diagnosing, and retrying operations

Log level changes in the config file are applied without a restart;
all other settings require one.`,
		Example: `  # Serve with defaults
  adtrack serve

  # Serve with a config file
  adtrack serve --config adtrack.yaml

  # Override the listen address and archive path
  adtrack serve --addr 0.0.0.0:8980 --archive /var/lib/adtrack/ops.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if archive != "" {
				cfg.Archive.Path = archive
			}
			if verbose {
				cfg.Telemetry.Logging.Level = "debug"
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&archive, "archive", "", "SQLite archive path (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger, err := telemetry.NewLogger(cfg.Telemetry.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	metrics, err := telemetry.NewMetrics(cfg.Telemetry.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	tracer, err := telemetry.NewTracer(cfg.Telemetry.Tracing,
		cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Telemetry.Environment)
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Tracer shutdown failed")
		}
	}()

	store := tracker.NewMemoryStore()
	trk := tracker.New(store, tracker.Config{
		Strict:  cfg.Tracker.Strict,
		Logger:  logger,
		Metrics: metrics,
	})
	retry := tracker.NewRetryEngine(trk)

	diagLog := logger.NewComponentLogger("diagnose").Zerolog()
	rules := diagnose.BuiltinRules()
	if cfg.Diagnose.PolicyDir != "" {
		policyRules, err := diagnose.LoadPolicyRules(ctx, cfg.Diagnose.PolicyDir, diagLog)
		if err != nil {
			return fmt.Errorf("failed to load diagnostic policies: %w", err)
		}
		rules = append(rules, policyRules...)
	}
	analyzer := diagnose.NewAnalyzer(diagLog, rules...)

	arch, err := stores.NewSQLiteArchive(stores.Config{Path: cfg.Archive.Path})
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	if err := arch.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize archive: %w", err)
	}
	defer func() { _ = arch.Close() }()
	if err := arch.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate archive: %w", err)
	}

	archiver := stores.NewArchiver(arch, logger.Zerolog(), cfg.Archive.BufferSize)
	archiver.Start(trk)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := archiver.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("Archiver stopped without draining")
		}
	}()

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, logger.Zerolog(), func(next config.Config) {
			logger.SetLevel(next.Telemetry.Logging.Level)
			logger.WithField("level", next.Telemetry.Logging.Level).Info("Log level reloaded")
		})
		if err != nil {
			logger.WithError(err).Warn("Config watching disabled")
		} else {
			go watcher.Run(ctx)
		}
	}

	server := api.NewServer(cfg.Server, api.Deps{
		Tracker:  trk,
		Retry:    retry,
		Analyzer: analyzer,
		Archive:  arch,
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
	})

	logger.WithField("addr", cfg.Server.Addr).Info("Starting AdTrack service")
	return server.Run(ctx)
}
