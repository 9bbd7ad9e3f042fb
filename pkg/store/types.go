package store

import (
	"context"
	"time"

	"tessera-hq/minos/pkg/rules"
)

// BackupTimestampLayout is the timestamp format embedded in backup names.
const BackupTimestampLayout = "20060102_150405"

// Backend is the durable document interface the store builds on: one live
// document per version plus an append-only collection of timestamped
// backups for that version. Implementations must be safe for concurrent
// use; the Store serializes writers per version above this interface.
type Backend interface {
	// Read returns the live rule set document for a version.
	// Returns an error wrapping ErrConfigNotFound if none exists.
	Read(ctx context.Context, version string) (*rules.RuleSet, error)

	// Write replaces the live document for a version, creating it if absent.
	Write(ctx context.Context, version string, rs *rules.RuleSet) error

	// AppendBackup snapshots the current live document for a version into
	// the backup area under the given timestamp. The snapshot is
	// byte-for-byte identical to the live document and is never mutated
	// afterwards. Returns an error wrapping ErrConfigNotFound if no live
	// document exists.
	AppendBackup(ctx context.Context, version string, timestamp time.Time) error

	// ListBackups returns backups for a version, oldest first.
	ListBackups(ctx context.Context, version string) ([]BackupInfo, error)

	// ReadBackup returns the rule set stored in a named backup.
	ReadBackup(ctx context.Context, version, name string) (*rules.RuleSet, error)

	// DeleteBackup removes a named backup. Used only by retention pruning;
	// backups are otherwise retained indefinitely.
	DeleteBackup(ctx context.Context, version, name string) error

	// Versions returns all versions with a live document.
	Versions(ctx context.Context) ([]string, error)

	// Close releases any resources held by the backend.
	Close() error
}

// BackupInfo describes one immutable backup snapshot.
type BackupInfo struct {
	// Version is the rule set version the backup belongs to.
	Version string

	// Name uniquely identifies the backup within its version.
	Name string

	// CreatedAt is when the backup was taken.
	CreatedAt time.Time
}
