package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"tessera-hq/minos/pkg/audit"
	"tessera-hq/minos/pkg/cli"
	"tessera-hq/minos/pkg/engine"
	"tessera-hq/minos/pkg/explain"
	"tessera-hq/minos/pkg/server"
	"tessera-hq/minos/pkg/store"
	"tessera-hq/minos/pkg/telemetry/metrics"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the evaluation API server",
	Long: `Start the evaluation API server with the specified configuration.

The server loads the configured rule set version, certifies it, and serves
evaluation requests over HTTP. With storage.watch enabled (file backend),
changes to the live document are picked up automatically; invalid documents
are rejected and the last good rule set stays active.

Examples:
  # Start with default config
  minos serve

  # Start with custom config
  minos serve --config /etc/minos/config.yaml

  # Override listen address
  minos serve --listen 0.0.0.0:8080

  # Validate config without starting server
  minos serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	if serveFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx := cli.SetupSignalHandler()

	// Metrics
	var m *metrics.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		m = metrics.New(cfg.Telemetry.Metrics.Namespace)
	}

	// Storage and configuration store
	backend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	var storeOpts []store.Option
	if m != nil {
		storeOpts = append(storeOpts, store.WithMetrics(m.Store))
	}
	st := store.New(backend, logger, storeOpts...)

	// Engine with the certified rule set
	engineCfg := &engine.Config{Workers: cfg.Engine.Workers}
	if m != nil {
		engineCfg.Metrics = m.Engine
	}
	eng := engine.New(engineCfg, logger)

	version := cfg.Storage.DefaultVersion
	rs, err := st.Load(ctx, version)
	if err != nil {
		return fmt.Errorf("failed to load rule configuration %q: %w", version, err)
	}
	if err := eng.SetRuleSet(rs); err != nil {
		return fmt.Errorf("rule configuration %q failed certification: %w", version, err)
	}
	logger.Info("rule configuration loaded",
		"version", version,
		"rules", len(rs.Rules),
	)

	// Hot reload (file backend only)
	if cfg.Storage.Watch {
		fileBackend, ok := backend.(*store.FileBackend)
		if !ok {
			return fmt.Errorf("storage.watch requires the file backend")
		}
		watcher, err := store.NewFileWatcher(&store.FileWatcherConfig{
			Dir:              cfg.Storage.Dir,
			File:             filepath.Base(fileBackend.LivePath(version)),
			DebounceInterval: cfg.Storage.WatchDebounce,
		}, logger)
		if err != nil {
			return err
		}
		go func() {
			err := watcher.Watch(ctx, func() error {
				reloaded, err := st.Load(ctx, version)
				if err != nil {
					return err
				}
				if err := eng.SetRuleSet(reloaded); err != nil {
					return err
				}
				logger.Info("rule configuration reloaded",
					"version", version,
					"rules", len(reloaded.Rules),
				)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("file watcher stopped", "error", err)
			}
		}()
	}

	// Audit log
	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		log, err := audit.NewSQLiteLog(audit.DefaultSQLiteLogConfig(cfg.Audit.Path), logger)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer log.Close()
		recorder = audit.NewRecorder(log, logger)

		if cfg.Audit.RetentionDays > 0 {
			go pruneAuditPeriodically(ctx, log, cfg.Audit.RetentionDays, logger)
		}
	}

	// Backup retention scheduler
	if cfg.Retention.Enabled {
		pruner := store.NewPruner(backend, store.RetentionConfig{
			Schedule:      cfg.Retention.Schedule,
			RetentionDays: cfg.Retention.RetentionDays,
			MaxBackups:    cfg.Retention.MaxBackups,
		}, logger)
		scheduler := store.NewScheduler(pruner)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start retention scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	srv := server.NewServer(&cfg.Server, eng, logger, server.Options{
		Recorder:    recorder,
		Explainer:   explain.NewTemplateExplainer(),
		Metrics:     m,
		MetricsPath: cfg.Telemetry.Metrics.Path,
	})

	return srv.Start(ctx)
}

// pruneAuditPeriodically prunes out-of-retention audit entries once a day,
// starting immediately.
func pruneAuditPeriodically(ctx context.Context, log audit.Log, retentionDays int, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		if _, err := log.Prune(ctx, cutoff); err != nil {
			logger.Error("audit pruning failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
