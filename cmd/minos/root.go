package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tessera-hq/minos/pkg/config"
	"tessera-hq/minos/pkg/store"
	"tessera-hq/minos/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "minos",
	Short: "Minos - deterministic transaction rule evaluation engine",
	Long: `Minos is a deterministic rule evaluation engine for transaction risk
decisions, with versioned rule set configuration management.

It evaluates transaction records against ordered rule sets, providing:
  - First-match rule evaluation with auditable outcomes
  - Versioned rule configuration storage with automatic backups
  - Rule set validation and governance tooling
  - An HTTP evaluation API with Prometheus metrics`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json)")
}

// loadConfig loads the configuration file with environment overrides. A
// missing config file yields defaults so CLI commands work out of the box.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		return config.NewDefaultConfig(), nil
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

// newLogger builds the process logger from configuration. The verbose flag
// forces debug level.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Telemetry.Logging.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:     level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Writer:    os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// openBackend constructs the configured storage backend.
func openBackend(cfg *config.Config, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return store.NewSQLiteBackend(cfg.Storage.DBPath, logger)
	default:
		return store.NewFileBackend(cfg.Storage.Dir, logger)
	}
}

// openStore constructs the configuration store over the configured backend.
// The returned cleanup func closes the backend.
func openStore(cfg *config.Config, logger *slog.Logger) (*store.Store, func(), error) {
	backend, err := openBackend(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := backend.Close(); err != nil {
			logger.Warn("failed to close storage backend", "error", err)
		}
	}
	return store.New(backend, logger), cleanup, nil
}
