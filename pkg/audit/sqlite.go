package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"tessera-hq/minos/pkg/rules"
)

// SQLiteLog stores audit entries in a SQLite database.
type SQLiteLog struct {
	db     *sql.DB
	logger *slog.Logger
}

// SQLiteLogConfig contains configuration for the SQLite audit log.
type SQLiteLogConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables write-ahead logging for better concurrency.
	// Default: true
	WALMode bool
}

// DefaultSQLiteLogConfig returns the default audit log configuration.
func DefaultSQLiteLogConfig(path string) *SQLiteLogConfig {
	return &SQLiteLogConfig{
		Path:         path,
		MaxOpenConns: 10,
		WALMode:      true,
	}
}

// NewSQLiteLog opens (or creates) the audit log database.
func NewSQLiteLog(config *SQLiteLogConfig, logger *slog.Logger) (*SQLiteLog, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("audit log path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)

	l := &SQLiteLog{
		db:     db,
		logger: logger.With("component", "audit.sqlite"),
	}

	if err := l.initialize(config.WALMode); err != nil {
		db.Close()
		return nil, err
	}

	l.logger.Info("audit log initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return l, nil
}

// initialize sets up the schema and enables WAL mode if configured.
func (l *SQLiteLog) initialize(walMode bool) error {
	if walMode {
		if _, err := l.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		rule_name TEXT NOT NULL,
		risk_score INTEGER NOT NULL,
		decision TEXT NOT NULL,
		reason TEXT NOT NULL,
		record TEXT NOT NULL,
		config_version TEXT NOT NULL,
		evaluated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_transaction ON audit_entries(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_audit_decision ON audit_entries(decision);
	CREATE INDEX IF NOT EXISTS idx_audit_evaluated_at ON audit_entries(evaluated_at);
	`

	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	return nil
}

// Insert appends one entry to the log.
func (l *SQLiteLog) Insert(ctx context.Context, entry *Entry) error {
	recordJSON, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record snapshot: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_entries
		 (id, transaction_id, rule_id, rule_name, risk_score, decision, reason, record, config_version, evaluated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.TransactionID,
		entry.RuleID,
		entry.RuleName,
		entry.RiskScore,
		string(entry.Decision),
		entry.Reason,
		string(recordJSON),
		entry.ConfigVersion,
		entry.EvaluatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// Query returns entries matching the query, newest first.
func (l *SQLiteLog) Query(ctx context.Context, q Query) ([]*Entry, error) {
	var (
		where []string
		args  []any
	)

	if q.TransactionID != "" {
		where = append(where, "transaction_id = ?")
		args = append(args, q.TransactionID)
	}
	if q.Decision != "" {
		where = append(where, "decision = ?")
		args = append(args, string(q.Decision))
	}
	if !q.Since.IsZero() {
		where = append(where, "evaluated_at >= ?")
		args = append(args, q.Since.Unix())
	}
	if !q.Until.IsZero() {
		where = append(where, "evaluated_at < ?")
		args = append(args, q.Until.Unix())
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	query := `SELECT id, transaction_id, rule_id, rule_name, risk_score, decision, reason, record, config_version, evaluated_at
		FROM audit_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY evaluated_at DESC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry       Entry
			decision    string
			recordJSON  string
			evaluatedAt int64
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TransactionID,
			&entry.RuleID,
			&entry.RuleName,
			&entry.RiskScore,
			&decision,
			&entry.Reason,
			&recordJSON,
			&entry.ConfigVersion,
			&evaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.Decision = rules.Decision(decision)
		entry.EvaluatedAt = time.Unix(evaluatedAt, 0)

		var record rules.Record
		if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
			return nil, fmt.Errorf("failed to decode record snapshot for entry %s: %w", entry.ID, err)
		}
		entry.Record = record

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Count returns the total number of entries in the log.
func (l *SQLiteLog) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return n, nil
}

// Prune deletes entries evaluated before the cutoff and returns the number
// deleted.
func (l *SQLiteLog) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM audit_entries WHERE evaluated_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", err)
	}

	if n > 0 {
		l.logger.Info("audit entries pruned",
			"deleted", n,
			"older_than", olderThan,
		)
	}

	return int(n), nil
}

// Close closes the database.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
