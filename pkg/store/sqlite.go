package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
	"gopkg.in/yaml.v3"

	"tessera-hq/minos/pkg/rules"
)

// SQLiteBackend stores rule set documents in a SQLite database: a
// rule_configs table holds one live document per version and
// rule_config_backups is the append-only backup collection. Documents are
// stored as YAML text so backups stay byte-for-byte identical to what was
// live at backup time.
//
// SQLiteBackend uses WAL mode for better concurrent read performance and a
// single-writer connection pool, which matches the store's per-version
// writer serialization.
type SQLiteBackend struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger

	readStmt         *sql.Stmt
	writeStmt        *sql.Stmt
	appendBackupStmt *sql.Stmt
	backupExistsStmt *sql.Stmt
	listBackupsStmt  *sql.Stmt
	readBackupStmt   *sql.Stmt
	deleteBackupStmt *sql.Stmt
	versionsStmt     *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a SQLite backend with default settings.
func NewSQLiteBackend(dbPath string, logger *slog.Logger) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath}, logger)
}

// NewSQLiteBackendWithConfig creates a SQLite backend with custom
// configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig, logger *slog.Logger) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	b := &SQLiteBackend{
		db:     db,
		dbPath: cfg.DBPath,
		logger: logger.With("component", "store.sqlite"),
	}

	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := b.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return b, nil
}

// initSchema creates the database schema if it doesn't exist.
func (b *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rule_configs (
		version TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rule_config_backups (
		version TEXT NOT NULL,
		name TEXT NOT NULL,
		document TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (version, name)
	);

	CREATE INDEX IF NOT EXISTS idx_rule_config_backups_created
		ON rule_config_backups(version, created_at);
	`

	_, err := b.db.Exec(schema)
	return err
}

// prepareStatements pre-compiles the SQL statements used by the backend.
func (b *SQLiteBackend) prepareStatements() error {
	var err error

	if b.readStmt, err = b.db.Prepare(
		`SELECT document FROM rule_configs WHERE version = ?`); err != nil {
		return err
	}
	if b.writeStmt, err = b.db.Prepare(
		`INSERT INTO rule_configs (version, document, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(version) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`); err != nil {
		return err
	}
	if b.appendBackupStmt, err = b.db.Prepare(
		`INSERT INTO rule_config_backups (version, name, document, created_at)
		 SELECT version, ?, document, ? FROM rule_configs WHERE version = ?`); err != nil {
		return err
	}
	if b.backupExistsStmt, err = b.db.Prepare(
		`SELECT 1 FROM rule_config_backups WHERE version = ? AND name = ?`); err != nil {
		return err
	}
	if b.listBackupsStmt, err = b.db.Prepare(
		`SELECT name, created_at FROM rule_config_backups WHERE version = ? ORDER BY created_at ASC, rowid ASC`); err != nil {
		return err
	}
	if b.readBackupStmt, err = b.db.Prepare(
		`SELECT document FROM rule_config_backups WHERE version = ? AND name = ?`); err != nil {
		return err
	}
	if b.deleteBackupStmt, err = b.db.Prepare(
		`DELETE FROM rule_config_backups WHERE version = ? AND name = ?`); err != nil {
		return err
	}
	if b.versionsStmt, err = b.db.Prepare(
		`SELECT version FROM rule_configs ORDER BY version ASC`); err != nil {
		return err
	}

	return nil
}

// Read returns the live rule set document for a version.
func (b *SQLiteBackend) Read(ctx context.Context, version string) (*rules.RuleSet, error) {
	if err := checkVersion(version); err != nil {
		return nil, err
	}

	var document string
	err := b.readStmt.QueryRowContext(ctx, version).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Version: version}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config for version %q: %w", version, err)
	}

	var rs rules.RuleSet
	if err := yaml.Unmarshal([]byte(document), &rs); err != nil {
		return nil, fmt.Errorf("failed to parse config for version %q: %w", version, err)
	}

	return &rs, nil
}

// Write replaces the live document for a version.
func (b *SQLiteBackend) Write(ctx context.Context, version string, rs *rules.RuleSet) error {
	if err := checkVersion(version); err != nil {
		return err
	}

	data, err := yaml.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to marshal config for version %q: %w", version, err)
	}

	if _, err := b.writeStmt.ExecContext(ctx, version, string(data), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to write config for version %q: %w", version, err)
	}

	b.logger.Debug("config written",
		"version", version,
		"bytes", len(data),
	)

	return nil
}

// AppendBackup copies the current live document into the backup table.
// The copy happens inside SQLite, so the snapshot is byte-for-byte
// identical to the live document.
func (b *SQLiteBackend) AppendBackup(ctx context.Context, version string, timestamp time.Time) error {
	if err := checkVersion(version); err != nil {
		return err
	}

	// A second backup within the same second gets a sequence suffix, the
	// same naming the file backend uses, so the insert never collides with
	// an existing snapshot. The store's writer lock keeps the probe and the
	// insert atomic per version.
	base := fmt.Sprintf("rules_%s_%s", version, timestamp.Format(BackupTimestampLayout))
	name := base
	for seq := 2; ; seq++ {
		var one int
		err := b.backupExistsStmt.QueryRowContext(ctx, version, name).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to write backup for version %q: %w", version, err)
		}
		name = fmt.Sprintf("%s_%d", base, seq)
	}

	res, err := b.appendBackupStmt.ExecContext(ctx, name, timestamp.Unix(), version)
	if err != nil {
		return fmt.Errorf("failed to write backup for version %q: %w", version, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to write backup for version %q: %w", version, err)
	}
	if n == 0 {
		return &NotFoundError{Version: version}
	}

	b.logger.Info("backup written",
		"version", version,
		"name", name,
	)

	return nil
}

// ListBackups returns backups for a version, oldest first.
func (b *SQLiteBackend) ListBackups(ctx context.Context, version string) ([]BackupInfo, error) {
	if err := checkVersion(version); err != nil {
		return nil, err
	}

	rows, err := b.listBackupsStmt.QueryContext(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups for version %q: %w", version, err)
	}
	defer rows.Close()

	var backups []BackupInfo
	for rows.Next() {
		var (
			name      string
			createdAt int64
		)
		if err := rows.Scan(&name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan backup row: %w", err)
		}
		backups = append(backups, BackupInfo{
			Version:   version,
			Name:      name,
			CreatedAt: time.Unix(createdAt, 0),
		})
	}

	return backups, rows.Err()
}

// ReadBackup returns the rule set stored in a named backup.
func (b *SQLiteBackend) ReadBackup(ctx context.Context, version, name string) (*rules.RuleSet, error) {
	if err := checkVersion(version); err != nil {
		return nil, err
	}

	var document string
	err := b.readBackupStmt.QueryRowContext(ctx, version, name).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Version: version}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %q: %w", name, err)
	}

	var rs rules.RuleSet
	if err := yaml.Unmarshal([]byte(document), &rs); err != nil {
		return nil, fmt.Errorf("failed to parse backup %q: %w", name, err)
	}

	return &rs, nil
}

// DeleteBackup removes a named backup.
func (b *SQLiteBackend) DeleteBackup(ctx context.Context, version, name string) error {
	if err := checkVersion(version); err != nil {
		return err
	}

	if _, err := b.deleteBackupStmt.ExecContext(ctx, version, name); err != nil {
		return fmt.Errorf("failed to delete backup %q: %w", name, err)
	}

	return nil
}

// Versions returns all versions with a live document.
func (b *SQLiteBackend) Versions(ctx context.Context) ([]string, error) {
	rows, err := b.versionsStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan version row: %w", err)
		}
		versions = append(versions, v)
	}

	return versions, rows.Err()
}

// Close closes the database and prepared statements.
func (b *SQLiteBackend) Close() error {
	for _, stmt := range []*sql.Stmt{
		b.readStmt, b.writeStmt, b.appendBackupStmt, b.backupExistsStmt,
		b.listBackupsStmt, b.readBackupStmt, b.deleteBackupStmt, b.versionsStmt,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return b.db.Close()
}
