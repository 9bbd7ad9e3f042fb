package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tessera-hq/minos/pkg/rules"
	"tessera-hq/minos/pkg/telemetry/metrics"
)

// Store governs rule set configuration on top of a Backend. Mutating
// operations (save, add, update, delete, reorder) are serialized per
// version with a single writer lock; reads of a stable version take no
// lock. The store performs no validation: callers gate saves on the
// validator before or after mutation.
type Store struct {
	backend Backend
	logger  *slog.Logger
	metrics *metrics.StoreMetrics

	// versionLocks holds the per-version writer locks, lazily created.
	mu           sync.Mutex
	versionLocks map[string]*sync.Mutex

	// now is replaceable in tests to pin backup timestamps.
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics attaches store metrics.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a Store over a backend.
func New(backend Backend, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		backend:      backend,
		logger:       logger.With("component", "store"),
		versionLocks: make(map[string]*sync.Mutex),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying document backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// lockVersion acquires the writer lock for a version and returns the
// unlock function. At most one mutating operation is in flight per version;
// there is no cross-version coordination.
func (s *Store) lockVersion(version string) func() {
	s.mu.Lock()
	lock, ok := s.versionLocks[version]
	if !ok {
		lock = &sync.Mutex{}
		s.versionLocks[version] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Load returns the rule set stored for a version. Fails with an error
// wrapping ErrConfigNotFound when no config exists for that version.
func (s *Store) Load(ctx context.Context, version string) (*rules.RuleSet, error) {
	return s.backend.Read(ctx, version)
}

// Save persists a rule set for a version. When a prior config exists and
// backup is requested, an immutable timestamped copy of the prior content
// is written first; a backup failure aborts the save so the prior version
// is never silently lost. Saving a version with no prior config skips the
// backup.
func (s *Store) Save(ctx context.Context, rs *rules.RuleSet, version string, backup bool) error {
	unlock := s.lockVersion(version)
	defer unlock()

	return s.save(ctx, rs, version, backup)
}

// save is Save without the version lock, for callers that already hold it.
func (s *Store) save(ctx context.Context, rs *rules.RuleSet, version string, backup bool) error {
	start := s.now()

	if backup {
		err := s.backend.AppendBackup(ctx, version, start)
		switch {
		case err == nil:
			if s.metrics != nil {
				s.metrics.ObserveBackup(version)
			}
		case isNotFound(err):
			// First save for this version; nothing to back up.
		default:
			return &BackupError{Version: version, Cause: err}
		}
	}

	if err := s.backend.Write(ctx, version, rs); err != nil {
		return err
	}

	s.observeMutation("save", version, start)
	s.logger.Info("config saved",
		"version", version,
		"rule_count", len(rs.Rules),
		"backup", backup,
	)

	return nil
}

// NextID returns the next free generated rule id for a rule set: one
// greater than the highest RULE_NNN present, or RULE_001 when none exist.
// Ids outside the pattern are ignored for numbering, so freshly generated
// ids never collide with existing ones.
func (s *Store) NextID(rs *rules.RuleSet) string {
	return rs.NextID()
}

// AddRule loads the version's config, inserts the rule, and saves with
// backup. With a nil position the rule is inserted immediately before the
// terminal ALWAYS rule (or at the end of the list if no terminal rule
// exists, an invariant violation surfaced by the next validation).
// An explicit position is clamped to the list bounds. A rule with an empty
// id is assigned the next sequential generated id; the id of the inserted
// rule is returned.
func (s *Store) AddRule(ctx context.Context, rule rules.Rule, version string, position *int) (string, error) {
	unlock := s.lockVersion(version)
	defer unlock()

	rs, err := s.backend.Read(ctx, version)
	if err != nil {
		return "", err
	}

	if rule.ID == "" {
		rule.ID = rs.NextID()
	}

	idx := rs.TerminalIndex()
	if position != nil {
		idx = *position
		if idx < 0 {
			idx = 0
		}
		if idx > len(rs.Rules) {
			idx = len(rs.Rules)
		}
	}

	rs.Rules = append(rs.Rules, rules.Rule{})
	copy(rs.Rules[idx+1:], rs.Rules[idx:])
	rs.Rules[idx] = rule

	if err := s.save(ctx, rs, version, true); err != nil {
		return "", err
	}

	s.logger.Info("rule added",
		"version", version,
		"rule_id", rule.ID,
		"position", idx,
	)

	return rule.ID, nil
}

// UpdateRule replaces the rule with the matching id in place, preserving
// its position. Returns false without error when no rule with that id
// exists.
func (s *Store) UpdateRule(ctx context.Context, id string, updated rules.Rule, version string) (bool, error) {
	unlock := s.lockVersion(version)
	defer unlock()

	rs, err := s.backend.Read(ctx, version)
	if err != nil {
		return false, err
	}

	idx := rs.FindRule(id)
	if idx < 0 {
		return false, nil
	}

	rs.Rules[idx] = updated

	if err := s.save(ctx, rs, version, true); err != nil {
		return false, err
	}

	s.logger.Info("rule updated",
		"version", version,
		"rule_id", id,
	)

	return true, nil
}

// DeleteRule removes the rule with the matching id. Returns false without
// error when no rule with that id exists.
func (s *Store) DeleteRule(ctx context.Context, id string, version string) (bool, error) {
	unlock := s.lockVersion(version)
	defer unlock()

	rs, err := s.backend.Read(ctx, version)
	if err != nil {
		return false, err
	}

	idx := rs.FindRule(id)
	if idx < 0 {
		return false, nil
	}

	rs.Rules = append(rs.Rules[:idx], rs.Rules[idx+1:]...)

	if err := s.save(ctx, rs, version, true); err != nil {
		return false, err
	}

	s.logger.Info("rule deleted",
		"version", version,
		"rule_id", id,
	)

	return true, nil
}

// ReorderRules rewrites the rule sequence to the given id order. Ids in
// orderedIDs that match no stored rule are skipped; stored rules whose id
// is absent from orderedIDs are dropped from the result. Set membership
// defines survival here, including for the terminal rule: omitting it
// leaves a config the validator will reject, which is surfaced before the
// next gated save.
func (s *Store) ReorderRules(ctx context.Context, orderedIDs []string, version string) error {
	unlock := s.lockVersion(version)
	defer unlock()

	rs, err := s.backend.Read(ctx, version)
	if err != nil {
		return err
	}

	byID := make(map[string]rules.Rule, len(rs.Rules))
	for _, r := range rs.Rules {
		byID[r.ID] = r
	}

	reordered := make([]rules.Rule, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		if r, ok := byID[id]; ok {
			reordered = append(reordered, r)
		}
	}

	dropped := len(rs.Rules) - len(reordered)
	rs.Rules = reordered

	if err := s.save(ctx, rs, version, true); err != nil {
		return err
	}

	if dropped > 0 {
		s.logger.Warn("rules dropped by reorder",
			"version", version,
			"dropped", dropped,
		)
	}

	return nil
}

// ListBackups returns the backups recorded for a version, oldest first.
func (s *Store) ListBackups(ctx context.Context, version string) ([]BackupInfo, error) {
	return s.backend.ListBackups(ctx, version)
}

// RestoreBackup saves the content of a named backup as the live config for
// its version, backing up the current live config first.
func (s *Store) RestoreBackup(ctx context.Context, version, name string) error {
	unlock := s.lockVersion(version)
	defer unlock()

	rs, err := s.backend.ReadBackup(ctx, version, name)
	if err != nil {
		return fmt.Errorf("failed to restore backup %q: %w", name, err)
	}

	if err := s.save(ctx, rs, version, true); err != nil {
		return err
	}

	s.logger.Info("backup restored",
		"version", version,
		"name", name,
	)

	return nil
}

func (s *Store) observeMutation(operation, version string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveMutation(operation, version, time.Since(start))
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrConfigNotFound)
}
