package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tessera-hq/minos/pkg/rules"
)

// Log is the storage interface the recorder writes to.
type Log interface {
	Insert(ctx context.Context, entry *Entry) error
	Query(ctx context.Context, q Query) ([]*Entry, error)
	Count(ctx context.Context) (int, error)
	Prune(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// Recorder builds audit entries from evaluation results and appends them to
// a log. A nil Recorder is safe to use and records nothing.
type Recorder struct {
	log    Log
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder writing to the given log.
func NewRecorder(log Log, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log:    log,
		logger: logger.With("component", "audit.recorder"),
		now:    time.Now,
	}
}

// Record appends one evaluation result to the audit log. The record snapshot
// is stored alongside the outcome so a decision can be reconstructed later.
// Failures are logged but never fail the evaluation itself.
func (r *Recorder) Record(ctx context.Context, result *rules.EvaluationResult, record rules.Record, configVersion string) {
	if r == nil || r.log == nil || result == nil {
		return
	}

	entry := &Entry{
		ID:            uuid.New().String(),
		TransactionID: result.TransactionID,
		RuleID:        result.MatchedRuleID,
		RuleName:      result.MatchedRuleName,
		RiskScore:     result.RiskScore,
		Decision:      result.Decision,
		Reason:        result.RuleReason,
		Record:        record,
		ConfigVersion: configVersion,
		EvaluatedAt:   r.now(),
	}

	if err := r.log.Insert(ctx, entry); err != nil {
		r.logger.Error("failed to record audit entry",
			"transaction_id", entry.TransactionID,
			"rule_id", entry.RuleID,
			"error", err,
		)
		return
	}

	r.logger.Debug("audit entry recorded",
		"id", entry.ID,
		"transaction_id", entry.TransactionID,
		"decision", entry.Decision,
	)
}
