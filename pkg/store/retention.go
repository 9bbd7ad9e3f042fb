package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls backup pruning. Backups are retained
// indefinitely unless a pruning policy is configured.
type RetentionConfig struct {
	// Schedule is a standard cron expression for automatic pruning
	// (e.g. "0 3 * * *" for daily at 3 AM). Empty disables the scheduler.
	Schedule string `yaml:"schedule"`

	// RetentionDays drops backups older than this many days. Zero keeps
	// backups regardless of age.
	RetentionDays int `yaml:"retention_days"`

	// MaxBackups caps the number of backups kept per version, dropping
	// the oldest first. Zero means no cap.
	MaxBackups int `yaml:"max_backups"`
}

// Pruner deletes backups that fall outside the retention policy.
type Pruner struct {
	backend Backend
	config  RetentionConfig
	logger  *slog.Logger
}

// NewPruner creates a backup pruner.
func NewPruner(backend Backend, config RetentionConfig, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		backend: backend,
		config:  config,
		logger:  logger.With("component", "store.pruner"),
	}
}

// Prune removes out-of-policy backups across all versions and returns the
// number deleted. Age and count limits combine: a backup is removed when it
// is older than RetentionDays or beyond the newest MaxBackups.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	versions, err := p.backend.Versions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list versions: %w", err)
	}

	deleted := 0
	for _, version := range versions {
		n, err := p.pruneVersion(ctx, version)
		if err != nil {
			return deleted, err
		}
		deleted += n
	}

	return deleted, nil
}

func (p *Pruner) pruneVersion(ctx context.Context, version string) (int, error) {
	backups, err := p.backend.ListBackups(ctx, version)
	if err != nil {
		return 0, fmt.Errorf("failed to list backups for version %q: %w", version, err)
	}

	var cutoff time.Time
	if p.config.RetentionDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -p.config.RetentionDays)
	}

	// Backups are oldest first; everything before this index is beyond
	// the per-version cap.
	capIndex := 0
	if p.config.MaxBackups > 0 && len(backups) > p.config.MaxBackups {
		capIndex = len(backups) - p.config.MaxBackups
	}

	deleted := 0
	for i, b := range backups {
		expired := !cutoff.IsZero() && b.CreatedAt.Before(cutoff)
		overCap := i < capIndex
		if !expired && !overCap {
			continue
		}

		if err := p.backend.DeleteBackup(ctx, version, b.Name); err != nil {
			return deleted, fmt.Errorf("failed to delete backup %q: %w", b.Name, err)
		}
		deleted++
	}

	if deleted > 0 {
		p.logger.Info("backups pruned",
			"version", version,
			"deleted", deleted,
			"remaining", len(backups)-deleted,
		)
	}

	return deleted, nil
}

// Scheduler runs the pruner on a cron schedule.
type Scheduler struct {
	pruner  *Pruner
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a retention scheduler.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		cron:   cron.New(),
		logger: pruner.logger.With("component", "store.scheduler"),
	}
}

// Start begins scheduled pruning based on the configured cron expression.
// If no schedule is configured the scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.pruner.config.Schedule
	if schedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		s.runPruning(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", schedule,
		"retention_days", s.pruner.config.RetentionDays,
		"max_backups", s.pruner.config.MaxBackups,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runPruning executes one pruning cycle.
func (s *Scheduler) runPruning(ctx context.Context) {
	s.logger.Info("starting scheduled backup pruning")

	deleted, err := s.pruner.Prune(ctx)
	if err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
		return
	}

	s.logger.Info("scheduled pruning complete", "deleted", deleted)
}

// Stop halts scheduled pruning.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cron.Stop()
	s.running = false
	s.logger.Info("retention scheduler stopped")
}
