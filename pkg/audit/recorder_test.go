package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"tessera-hq/minos/pkg/rules"
)

type fakeLog struct {
	entries   []*Entry
	insertErr error
}

func (f *fakeLog) Insert(ctx context.Context, entry *Entry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLog) Query(ctx context.Context, q Query) ([]*Entry, error) { return f.entries, nil }
func (f *fakeLog) Count(ctx context.Context) (int, error)              { return len(f.entries), nil }
func (f *fakeLog) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}
func (f *fakeLog) Close() error { return nil }

func TestRecorderRecord(t *testing.T) {
	log := &fakeLog{}
	r := NewRecorder(log, testLogger())
	at := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return at }

	record := rules.Record{
		"transaction_id":     "txn-42",
		"transaction_amount": 20000.0,
	}
	result := &rules.EvaluationResult{
		TransactionID:   "txn-42",
		MatchedRuleID:   "RULE_001",
		MatchedRuleName: "High value crypto",
		RiskScore:       90,
		Decision:        rules.DecisionBlock,
		RuleReason:      "Large crypto purchase",
	}

	r.Record(context.Background(), result, record, "v2")

	if len(log.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(log.entries))
	}
	entry := log.entries[0]
	if entry.ID == "" {
		t.Error("entry ID not assigned")
	}
	if entry.TransactionID != "txn-42" {
		t.Errorf("TransactionID = %q, want txn-42", entry.TransactionID)
	}
	if entry.RuleID != "RULE_001" || entry.RuleName != "High value crypto" {
		t.Errorf("rule = %q/%q, want RULE_001/High value crypto", entry.RuleID, entry.RuleName)
	}
	if entry.RiskScore != 90 || entry.Decision != rules.DecisionBlock {
		t.Errorf("outcome = %d/%q, want 90/%q", entry.RiskScore, entry.Decision, rules.DecisionBlock)
	}
	if entry.Reason != "Large crypto purchase" {
		t.Errorf("Reason = %q", entry.Reason)
	}
	if entry.ConfigVersion != "v2" {
		t.Errorf("ConfigVersion = %q, want v2", entry.ConfigVersion)
	}
	if !entry.EvaluatedAt.Equal(at) {
		t.Errorf("EvaluatedAt = %v, want %v", entry.EvaluatedAt, at)
	}
	if entry.Record["transaction_amount"] != 20000.0 {
		t.Errorf("record snapshot = %v", entry.Record)
	}
}

func TestRecorderAssignsUniqueIDs(t *testing.T) {
	log := &fakeLog{}
	r := NewRecorder(log, testLogger())
	result := &rules.EvaluationResult{TransactionID: "txn-1", Decision: rules.DecisionAllow}

	r.Record(context.Background(), result, rules.Record{}, "v2")
	r.Record(context.Background(), result, rules.Record{}, "v2")

	if len(log.entries) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(log.entries))
	}
	if log.entries[0].ID == log.entries[1].ID {
		t.Errorf("entry IDs not unique: %q", log.entries[0].ID)
	}
}

func TestRecorderNilSafety(t *testing.T) {
	result := &rules.EvaluationResult{TransactionID: "txn-1"}

	var nilRecorder *Recorder
	nilRecorder.Record(context.Background(), result, rules.Record{}, "v2")

	noLog := NewRecorder(nil, testLogger())
	noLog.Record(context.Background(), result, rules.Record{}, "v2")

	log := &fakeLog{}
	r := NewRecorder(log, testLogger())
	r.Record(context.Background(), nil, rules.Record{}, "v2")
	if len(log.entries) != 0 {
		t.Errorf("nil result recorded %d entries, want 0", len(log.entries))
	}
}

func TestRecorderInsertFailureIsSwallowed(t *testing.T) {
	log := &fakeLog{insertErr: errors.New("disk full")}
	r := NewRecorder(log, testLogger())
	result := &rules.EvaluationResult{TransactionID: "txn-1", Decision: rules.DecisionAllow}

	// Must not panic and must not propagate the failure.
	r.Record(context.Background(), result, rules.Record{}, "v2")
}
