package audit

import (
	"time"

	"tessera-hq/minos/pkg/rules"
)

// Entry is one recorded evaluation decision.
type Entry struct {
	// ID is a generated UUID uniquely identifying the entry.
	ID string `json:"id"`

	// TransactionID is the evaluated transaction's id ("unknown" when the
	// record carried none).
	TransactionID string `json:"transaction_id"`

	// RuleID and RuleName identify the matched rule.
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`

	// RiskScore, Decision, and Reason mirror the evaluation result.
	RiskScore int            `json:"risk_score"`
	Decision  rules.Decision `json:"decision"`
	Reason    string         `json:"reason"`

	// Record is the snapshot of the evaluated transaction record.
	Record rules.Record `json:"record"`

	// ConfigVersion is the rule set version in force at evaluation time.
	ConfigVersion string `json:"config_version"`

	// EvaluatedAt is when the decision was recorded.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Query filters audit entries. Zero-valued fields are ignored.
type Query struct {
	// TransactionID restricts results to one transaction.
	TransactionID string

	// Decision restricts results to one decision outcome.
	Decision rules.Decision

	// Since and Until bound EvaluatedAt (inclusive lower, exclusive upper).
	Since time.Time
	Until time.Time

	// Limit caps the number of entries returned (newest first). Zero
	// applies the default limit of 100.
	Limit int
}

// DefaultQueryLimit is applied when a query specifies no limit.
const DefaultQueryLimit = 100
