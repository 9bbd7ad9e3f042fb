package config

import "time"

// Config is the root configuration structure for Minos. It contains all
// configuration sections for rule storage, the evaluation engine, the HTTP
// server, the audit log, backup retention, and telemetry.
type Config struct {
	// Storage contains configuration for the rule configuration store
	// including backend selection and the default version.
	Storage StorageConfig `yaml:"storage"`

	// Engine contains configuration for the evaluation engine.
	Engine EngineConfig `yaml:"engine"`

	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Audit contains configuration for the append-only decision audit log.
	Audit AuditConfig `yaml:"audit"`

	// Retention contains configuration for scheduled backup pruning.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry contains configuration for observability including logging
	// and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StorageConfig contains configuration for the rule configuration store.
type StorageConfig struct {
	// Backend selects the storage backend. Valid values: "file", "sqlite".
	// Default: "file"
	Backend string `yaml:"backend"`

	// Dir is the directory holding rule configuration documents and their
	// backups. Used by the file backend.
	// Default: "./configs"
	Dir string `yaml:"dir"`

	// DBPath is the SQLite database path. Used by the sqlite backend.
	// Default: "./minos.db"
	DBPath string `yaml:"db_path"`

	// DefaultVersion is the configuration version loaded at startup.
	// Default: "v2"
	DefaultVersion string `yaml:"default_version"`

	// Watch enables automatic reload when the live document changes on
	// disk. Only effective with the file backend.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period after a filesystem event before the
	// document is reloaded.
	// Default: 500ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// EngineConfig contains configuration for the evaluation engine.
type EngineConfig struct {
	// Workers is the number of concurrent workers used for batch
	// evaluation. Values below 1 disable parallelism.
	// Default: 4
	Workers int `yaml:"workers"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// AuditConfig contains configuration for the decision audit log.
type AuditConfig struct {
	// Enabled controls whether evaluations are recorded.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the audit database file path.
	// Default: "./audit.db"
	Path string `yaml:"path"`

	// RetentionDays is how long audit entries are kept before pruning.
	// Zero disables audit pruning.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`
}

// RetentionConfig contains configuration for scheduled backup pruning.
type RetentionConfig struct {
	// Enabled controls whether the pruning scheduler runs.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard cron expression controlling when pruning runs.
	// Default: "0 2 * * *" (daily at 02:00)
	Schedule string `yaml:"schedule"`

	// RetentionDays is the maximum age of a backup before it is pruned.
	// Zero disables age-based pruning.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// MaxBackups caps how many backups are kept per version, oldest pruned
	// first. Zero disables the cap.
	// Default: 0
	MaxBackups int `yaml:"max_backups"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level. Valid values: "debug", "info",
	// "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format. Valid values: "json", "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path the metrics endpoint is served on.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the Prometheus namespace prefix for all metrics.
	// Default: "minos"
	Namespace string `yaml:"namespace"`
}
