package rules

import "fmt"

// UnknownTransactionID is the sentinel used when a record carries no
// transaction_id field. Evaluation never fails merely because an id is
// missing.
const UnknownTransactionID = "unknown"

// TransactionIDField is the record field holding the transaction identifier.
const TransactionIDField = "transaction_id"

// Record is one transaction: a mapping from field name to scalar value
// (string, number, or boolean). Unknown fields are ignored by evaluation;
// conditions over missing fields evaluate to false.
type Record map[string]any

// Field looks up a record field. A nil value is the record's "no-value"
// marker and is reported as absent.
func (r Record) Field(name string) (any, bool) {
	v, ok := r[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// TransactionID returns the record's transaction id, or
// UnknownTransactionID when the field is absent or empty. Non-string ids
// (numeric ids are common in upstream feeds) are formatted, not discarded.
func (r Record) TransactionID() string {
	v, ok := r.Field(TransactionIDField)
	if !ok {
		return UnknownTransactionID
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if s == "" {
		return UnknownTransactionID
	}
	return s
}

// EvaluationResult is the deterministic outcome of evaluating one record
// against a certified rule set. Results are produced fresh per evaluation
// and never mutated after return.
type EvaluationResult struct {
	TransactionID   string   `json:"transaction_id" yaml:"transaction_id"`
	MatchedRuleID   string   `json:"matched_rule_id" yaml:"matched_rule_id"`
	MatchedRuleName string   `json:"matched_rule_name" yaml:"matched_rule_name"`
	RiskScore       int      `json:"risk_score" yaml:"risk_score"`
	Decision        Decision `json:"decision" yaml:"decision"`
	RuleReason      string   `json:"rule_reason" yaml:"rule_reason"`
}
