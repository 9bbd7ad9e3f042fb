package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tessera-hq/minos/pkg/rules"
)

// versionPattern restricts versions to path-safe strings so they can be
// embedded in file names and database keys.
var versionPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileBackend stores rule set documents as YAML files in a config
// directory: rules_<version>.yaml for the live document, with backups in a
// backups/ subdirectory named rules_<version>_<timestamp>.yaml. When a
// second backup lands in the same second a numeric sequence suffix keeps
// the names distinct, so existing backups are never overwritten.
type FileBackend struct {
	dir       string
	backupDir string
	logger    *slog.Logger
}

// NewFileBackend creates a file backend rooted at dir, creating the
// directory and its backup area if needed.
func NewFileBackend(dir string, logger *slog.Logger) (*FileBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("config directory cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	backupDir := filepath.Join(dir, "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	return &FileBackend{
		dir:       dir,
		backupDir: backupDir,
		logger:    logger.With("component", "store.file"),
	}, nil
}

// LivePath returns the path of the live document for a version. Useful for
// wiring a file watcher to the document the engine is serving.
func (b *FileBackend) LivePath(version string) string {
	return filepath.Join(b.dir, fmt.Sprintf("rules_%s.yaml", version))
}

// backupName builds the backup file name for a timestamp and same-second
// sequence number. The first backup in a second carries no suffix.
func backupName(version string, timestamp time.Time, seq int) string {
	stamp := timestamp.Format(BackupTimestampLayout)
	if seq > 1 {
		return fmt.Sprintf("rules_%s_%s_%d.yaml", version, stamp, seq)
	}
	return fmt.Sprintf("rules_%s_%s.yaml", version, stamp)
}

// parseBackupStamp splits a backup name's timestamp portion into its
// creation time and same-second sequence number.
func parseBackupStamp(stamp string) (time.Time, int, bool) {
	seq := 1
	if len(stamp) > len(BackupTimestampLayout) {
		tail := stamp[len(BackupTimestampLayout):]
		if !strings.HasPrefix(tail, "_") {
			return time.Time{}, 0, false
		}
		n, err := strconv.Atoi(tail[1:])
		if err != nil || n < 2 {
			return time.Time{}, 0, false
		}
		seq = n
		stamp = stamp[:len(BackupTimestampLayout)]
	}

	createdAt, err := time.ParseInLocation(BackupTimestampLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, 0, false
	}
	return createdAt, seq, true
}

// Read returns the live rule set document for a version.
func (b *FileBackend) Read(ctx context.Context, version string) (*rules.RuleSet, error) {
	if err := checkVersion(version); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.LivePath(version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Version: version}
		}
		return nil, fmt.Errorf("failed to read config for version %q: %w", version, err)
	}

	var rs rules.RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse config for version %q: %w", version, err)
	}

	return &rs, nil
}

// Write replaces the live document for a version.
func (b *FileBackend) Write(ctx context.Context, version string, rs *rules.RuleSet) error {
	if err := checkVersion(version); err != nil {
		return err
	}

	data, err := yaml.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to marshal config for version %q: %w", version, err)
	}

	if err := os.WriteFile(b.LivePath(version), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config for version %q: %w", version, err)
	}

	b.logger.Debug("config written",
		"version", version,
		"bytes", len(data),
	)

	return nil
}

// AppendBackup copies the current live document, byte for byte, into the
// backup area under the given timestamp.
func (b *FileBackend) AppendBackup(ctx context.Context, version string, timestamp time.Time) error {
	if err := checkVersion(version); err != nil {
		return err
	}

	data, err := os.ReadFile(b.LivePath(version))
	if err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{Version: version}
		}
		return fmt.Errorf("failed to read config for backup of version %q: %w", version, err)
	}

	// Exclusive create so an existing backup is never overwritten. A second
	// backup within the same second gets a sequence suffix.
	var path string
	for seq := 1; ; seq++ {
		path = filepath.Join(b.backupDir, backupName(version, timestamp, seq))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to write backup for version %q: %w", version, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("failed to write backup for version %q: %w", version, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write backup for version %q: %w", version, err)
		}
		break
	}

	b.logger.Info("backup written",
		"version", version,
		"path", path,
	)

	return nil
}

// ListBackups returns backups for a version, oldest first.
func (b *FileBackend) ListBackups(ctx context.Context, version string) ([]BackupInfo, error) {
	if err := checkVersion(version); err != nil {
		return nil, err
	}

	pattern := filepath.Join(b.backupDir, fmt.Sprintf("rules_%s_*.yaml", version))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups for version %q: %w", version, err)
	}

	prefix := fmt.Sprintf("rules_%s_", version)
	type entry struct {
		info BackupInfo
		seq  int
	}
	entries := make([]entry, 0, len(matches))
	for _, path := range matches {
		name := filepath.Base(path)
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".yaml")
		createdAt, seq, ok := parseBackupStamp(stamp)
		if !ok {
			// Not one of ours
			continue
		}
		entries = append(entries, entry{
			info: BackupInfo{Version: version, Name: name, CreatedAt: createdAt},
			seq:  seq,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].info.CreatedAt.Equal(entries[j].info.CreatedAt) {
			return entries[i].info.CreatedAt.Before(entries[j].info.CreatedAt)
		}
		return entries[i].seq < entries[j].seq
	})

	backups := make([]BackupInfo, len(entries))
	for i, e := range entries {
		backups[i] = e.info
	}
	return backups, nil
}

// ReadBackup returns the rule set stored in a named backup.
func (b *FileBackend) ReadBackup(ctx context.Context, version, name string) (*rules.RuleSet, error) {
	if err := checkVersion(version); err != nil {
		return nil, err
	}
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid backup name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(b.backupDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Version: version}
		}
		return nil, fmt.Errorf("failed to read backup %q: %w", name, err)
	}

	var rs rules.RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse backup %q: %w", name, err)
	}

	return &rs, nil
}

// DeleteBackup removes a named backup.
func (b *FileBackend) DeleteBackup(ctx context.Context, version, name string) error {
	if err := checkVersion(version); err != nil {
		return err
	}
	if name != filepath.Base(name) {
		return fmt.Errorf("invalid backup name %q", name)
	}

	if err := os.Remove(filepath.Join(b.backupDir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup %q: %w", name, err)
	}

	return nil
}

// Versions returns all versions with a live document.
func (b *FileBackend) Versions(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(b.dir, "rules_*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	versions := make([]string, 0, len(matches))
	for _, path := range matches {
		name := filepath.Base(path)
		version := strings.TrimSuffix(strings.TrimPrefix(name, "rules_"), ".yaml")
		if versionPattern.MatchString(version) {
			versions = append(versions, version)
		}
	}

	sort.Strings(versions)
	return versions, nil
}

// Close is a no-op for the file backend.
func (b *FileBackend) Close() error {
	return nil
}

func checkVersion(version string) error {
	if !versionPattern.MatchString(version) {
		return fmt.Errorf("invalid version %q", version)
	}
	return nil
}
