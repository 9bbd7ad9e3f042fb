package store

import (
	"context"
	"testing"
	"time"
)

func seedBackups(t *testing.T, b Backend, version string, ages ...time.Duration) {
	t.Helper()
	ctx := context.Background()

	doc := testRuleSet()
	doc.Version = version
	if err := b.Write(ctx, version, doc); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	for _, age := range ages {
		if err := b.AppendBackup(ctx, version, time.Now().Add(-age)); err != nil {
			t.Fatalf("AppendBackup() error = %v", err)
		}
	}
}

func TestPrunerAgeBased(t *testing.T) {
	b := newTestSQLiteBackend(t)
	seedBackups(t, b, "v2",
		40*24*time.Hour,
		35*24*time.Hour,
		24*time.Hour,
	)

	p := NewPruner(b, RetentionConfig{RetentionDays: 30}, testLogger())
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() deleted = %d, want 2", deleted)
	}

	backups, err := b.ListBackups(context.Background(), "v2")
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("remaining backups = %d, want 1", len(backups))
	}
}

func TestPrunerCountCap(t *testing.T) {
	b := newTestSQLiteBackend(t)
	seedBackups(t, b, "v2",
		5*time.Hour, 4*time.Hour, 3*time.Hour, 2*time.Hour, time.Hour,
	)

	p := NewPruner(b, RetentionConfig{MaxBackups: 2}, testLogger())
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("Prune() deleted = %d, want 3", deleted)
	}

	backups, err := b.ListBackups(context.Background(), "v2")
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("remaining backups = %d, want 2", len(backups))
	}
	// The newest two survive.
	for _, backup := range backups {
		if time.Since(backup.CreatedAt) > 3*time.Hour {
			t.Errorf("old backup %q survived the cap", backup.Name)
		}
	}
}

func TestPrunerCombinedPolicy(t *testing.T) {
	b := newTestSQLiteBackend(t)
	seedBackups(t, b, "v2",
		40*24*time.Hour, // expired
		3*time.Hour,     // over cap
		2*time.Hour,
		time.Hour,
	)

	p := NewPruner(b, RetentionConfig{RetentionDays: 30, MaxBackups: 2}, testLogger())
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() deleted = %d, want 2", deleted)
	}
}

func TestPrunerNoPolicy(t *testing.T) {
	b := newTestSQLiteBackend(t)
	seedBackups(t, b, "v2", 400*24*time.Hour, time.Hour)

	p := NewPruner(b, RetentionConfig{}, testLogger())
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("Prune() deleted = %d, want 0 with no policy", deleted)
	}
}

func TestPrunerSpansVersions(t *testing.T) {
	b := newTestSQLiteBackend(t)
	seedBackups(t, b, "v1", 40*24*time.Hour)
	seedBackups(t, b, "v2", 40*24*time.Hour, time.Hour)

	p := NewPruner(b, RetentionConfig{RetentionDays: 30}, testLogger())
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() deleted = %d, want 2 across versions", deleted)
	}
}

func TestSchedulerWithoutSchedule(t *testing.T) {
	b := newTestSQLiteBackend(t)
	p := NewPruner(b, RetentionConfig{RetentionDays: 30}, testLogger())
	s := NewScheduler(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Errorf("Start() with empty schedule error = %v", err)
	}
	s.Stop()
}

func TestSchedulerInvalidSchedule(t *testing.T) {
	b := newTestSQLiteBackend(t)
	p := NewPruner(b, RetentionConfig{Schedule: "not a cron expression"}, testLogger())
	s := NewScheduler(p)

	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() with invalid schedule expected error")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	b := newTestSQLiteBackend(t)
	p := NewPruner(b, RetentionConfig{Schedule: "0 2 * * *", RetentionDays: 30}, testLogger())
	s := NewScheduler(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()
	s.Stop() // second stop is a no-op
}
