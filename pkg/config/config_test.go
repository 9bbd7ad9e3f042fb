package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Storage.Backend != DefaultStorageBackend {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, DefaultStorageBackend)
	}
	if cfg.Storage.Dir != DefaultStorageDir {
		t.Errorf("Storage.Dir = %q, want %q", cfg.Storage.Dir, DefaultStorageDir)
	}
	if cfg.Storage.DefaultVersion != DefaultVersion {
		t.Errorf("Storage.DefaultVersion = %q, want %q", cfg.Storage.DefaultVersion, DefaultVersion)
	}
	if cfg.Storage.WatchDebounce != DefaultWatchDebounce {
		t.Errorf("Storage.WatchDebounce = %v, want %v", cfg.Storage.WatchDebounce, DefaultWatchDebounce)
	}
	if cfg.Engine.Workers != DefaultEngineWorkers {
		t.Errorf("Engine.Workers = %d, want %d", cfg.Engine.Workers, DefaultEngineWorkers)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("Server.ListenAddress = %q, want %q", cfg.Server.ListenAddress, DefaultListenAddress)
	}
	if cfg.Server.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("Server.ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if cfg.Audit.Enabled {
		t.Error("Audit.Enabled should default to false")
	}
	if cfg.Audit.RetentionDays != DefaultAuditRetentionDays {
		t.Errorf("Audit.RetentionDays = %d, want %d", cfg.Audit.RetentionDays, DefaultAuditRetentionDays)
	}
	if cfg.Retention.Schedule != DefaultRetentionSchedule {
		t.Errorf("Retention.Schedule = %q, want %q", cfg.Retention.Schedule, DefaultRetentionSchedule)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("Telemetry.Metrics.Enabled should default to true")
	}
	if cfg.Telemetry.Logging.Level != DefaultLoggingLevel {
		t.Errorf("Telemetry.Logging.Level = %q, want %q", cfg.Telemetry.Logging.Level, DefaultLoggingLevel)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Storage.Backend = "sqlite"
	cfg.Engine.Workers = 16
	cfg.Server.ListenAddress = "0.0.0.0:9090"
	cfg.Telemetry.Logging.Level = "debug"

	ApplyDefaults(cfg)

	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Engine.Workers != 16 {
		t.Errorf("Engine.Workers = %d, want 16", cfg.Engine.Workers)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("Server.ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("Telemetry.Logging.Level = %q, want debug", cfg.Telemetry.Logging.Level)
	}

	// Untouched fields still get defaults.
	if cfg.Storage.DBPath != DefaultStorageDBPath {
		t.Errorf("Storage.DBPath = %q, want %q", cfg.Storage.DBPath, DefaultStorageDBPath)
	}
}

func TestApplyDefaultsNil(t *testing.T) {
	ApplyDefaults(nil) // must not panic
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "unknown storage backend",
			mutate:    func(c *Config) { c.Storage.Backend = "postgres" },
			wantField: "storage.backend",
		},
		{
			name: "file backend without dir",
			mutate: func(c *Config) {
				c.Storage.Backend = "file"
				c.Storage.Dir = ""
			},
			wantField: "storage.dir",
		},
		{
			name: "sqlite backend without db path",
			mutate: func(c *Config) {
				c.Storage.Backend = "sqlite"
				c.Storage.DBPath = ""
			},
			wantField: "storage.db_path",
		},
		{
			name: "watch requires file backend",
			mutate: func(c *Config) {
				c.Storage.Backend = "sqlite"
				c.Storage.Watch = true
			},
			wantField: "storage.watch",
		},
		{
			name:      "missing default version",
			mutate:    func(c *Config) { c.Storage.DefaultVersion = "" },
			wantField: "storage.default_version",
		},
		{
			name:      "zero workers",
			mutate:    func(c *Config) { c.Engine.Workers = 0 },
			wantField: "engine.workers",
		},
		{
			name:      "missing listen address",
			mutate:    func(c *Config) { c.Server.ListenAddress = "" },
			wantField: "server.listen_address",
		},
		{
			name:      "negative read timeout",
			mutate:    func(c *Config) { c.Server.ReadTimeout = -time.Second },
			wantField: "server.read_timeout",
		},
		{
			name: "audit enabled without path",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.Path = ""
			},
			wantField: "audit.path",
		},
		{
			name:      "negative audit retention",
			mutate:    func(c *Config) { c.Audit.RetentionDays = -1 },
			wantField: "audit.retention_days",
		},
		{
			name: "retention enabled with bad schedule",
			mutate: func(c *Config) {
				c.Retention.Enabled = true
				c.Retention.Schedule = "not a cron expression"
			},
			wantField: "retention.schedule",
		},
		{
			name: "retention enabled without limits",
			mutate: func(c *Config) {
				c.Retention.Enabled = true
				c.Retention.RetentionDays = 0
				c.Retention.MaxBackups = 0
			},
			wantField: "retention.retention_days",
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Telemetry.Logging.Level = "trace" },
			wantField: "telemetry.logging.level",
		},
		{
			name:      "invalid log format",
			mutate:    func(c *Config) { c.Telemetry.Logging.Format = "logfmt" },
			wantField: "telemetry.logging.format",
		},
		{
			name:      "metrics path without slash",
			mutate:    func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			wantField: "telemetry.metrics.path",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			test.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() expected error")
			}

			var vErr ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}
			for _, fe := range vErr.Errors {
				if fe.Field == test.wantField {
					return
				}
			}
			t.Errorf("Validate() errors %v missing field %q", vErr.Errors, test.wantField)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Backend = "postgres"
	cfg.Engine.Workers = 0
	cfg.Telemetry.Logging.Level = "trace"

	err := Validate(cfg)
	var vErr ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Validate() error type = %T", err)
	}
	if len(vErr.Errors) != 3 {
		t.Errorf("Validate() collected %d errors, want 3: %v", len(vErr.Errors), vErr.Errors)
	}
	if !strings.Contains(vErr.Error(), "3 errors") {
		t.Errorf("ValidationError.Error() = %q", vErr.Error())
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
storage:
  backend: sqlite
  db_path: /var/lib/minos/rules.db
  default_version: v3
engine:
  workers: 8
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: 10s
telemetry:
  logging:
    level: debug
    format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Storage.DBPath != "/var/lib/minos/rules.db" {
		t.Errorf("Storage.DBPath = %q", cfg.Storage.DBPath)
	}
	if cfg.Storage.DefaultVersion != "v3" {
		t.Errorf("Storage.DefaultVersion = %q, want v3", cfg.Storage.DefaultVersion)
	}
	if cfg.Engine.Workers != 8 {
		t.Errorf("Engine.Workers = %d, want 8", cfg.Engine.Workers)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 10s", cfg.Server.ReadTimeout)
	}
	if cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("Telemetry.Logging.Format = %q, want text", cfg.Telemetry.Logging.Format)
	}

	// Defaults fill the rest.
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("Server.WriteTimeout = %v, want %v", cfg.Server.WriteTimeout, DefaultWriteTimeout)
	}
	if cfg.Telemetry.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Telemetry.Metrics.Path = %q, want %q", cfg.Telemetry.Metrics.Path, DefaultMetricsPath)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig(missing) expected error")
	}

	bad := writeConfigFile(t, "storage: [not, a, mapping]")
	if _, err := LoadConfig(bad); err == nil {
		t.Error("LoadConfig(malformed yaml) expected error")
	}

	invalid := writeConfigFile(t, `
storage:
  backend: postgres
`)
	if _, err := LoadConfig(invalid); err == nil {
		t.Error("LoadConfig(invalid config) expected validation error")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "127.0.0.1:8080"
engine:
  workers: 2
`)

	t.Setenv("MINOS_SERVER_LISTEN_ADDRESS", "0.0.0.0:9999")
	t.Setenv("MINOS_ENGINE_WORKERS", "12")
	t.Setenv("MINOS_STORAGE_DEFAULT_VERSION", "v9")
	t.Setenv("MINOS_AUDIT_ENABLED", "true")
	t.Setenv("MINOS_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("MINOS_STORAGE_WATCH_DEBOUNCE", "2s")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9999" {
		t.Errorf("Server.ListenAddress = %q, want env override", cfg.Server.ListenAddress)
	}
	if cfg.Engine.Workers != 12 {
		t.Errorf("Engine.Workers = %d, want 12", cfg.Engine.Workers)
	}
	if cfg.Storage.DefaultVersion != "v9" {
		t.Errorf("Storage.DefaultVersion = %q, want v9", cfg.Storage.DefaultVersion)
	}
	if !cfg.Audit.Enabled {
		t.Error("Audit.Enabled should be overridden to true")
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("Telemetry.Logging.Level = %q, want warn", cfg.Telemetry.Logging.Level)
	}
	if cfg.Storage.WatchDebounce != 2*time.Second {
		t.Errorf("Storage.WatchDebounce = %v, want 2s", cfg.Storage.WatchDebounce)
	}
}

func TestLoadConfigWithEnvOverridesRevalidates(t *testing.T) {
	path := writeConfigFile(t, "")

	t.Setenv("MINOS_STORAGE_BACKEND", "postgres")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Error("expected validation error for invalid env override")
	}
}

func TestEnvOverrideIgnoresUnparseableValues(t *testing.T) {
	cfg := NewDefaultConfig()

	t.Setenv("MINOS_ENGINE_WORKERS", "many")
	t.Setenv("MINOS_AUDIT_ENABLED", "definitely")

	applyEnvOverrides(cfg)

	if cfg.Engine.Workers != DefaultEngineWorkers {
		t.Errorf("Engine.Workers = %d, want default %d", cfg.Engine.Workers, DefaultEngineWorkers)
	}
	if cfg.Audit.Enabled {
		t.Error("Audit.Enabled should be unchanged for unparseable value")
	}
}
