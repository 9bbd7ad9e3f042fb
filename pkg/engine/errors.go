package engine

import (
	"errors"
	"fmt"

	"tessera-hq/minos/pkg/rules"
)

// Common sentinel errors.
var (
	// ErrNilRuleSet indicates the engine has no rule set loaded.
	ErrNilRuleSet = errors.New("no rule set loaded")

	// ErrNilRecord indicates a nil record was passed to evaluation.
	ErrNilRecord = errors.New("record cannot be nil")
)

// UnknownOperatorError indicates a condition references an operator outside
// the supported set. This is fatal to the evaluation call: it means the rule
// set escaped validation.
type UnknownOperatorError struct {
	Symbol rules.Operator
}

// Error returns the error message.
func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator: %q", e.Symbol)
}

// NoMatchingRuleError indicates no rule matched a record. This must never
// occur against a certified rule set, which always terminates in an ALWAYS
// rule; it signals a missing or misplaced terminal rule.
type NoMatchingRuleError struct {
	TransactionID string
	Version       string
}

// Error returns the error message.
func (e *NoMatchingRuleError) Error() string {
	return fmt.Sprintf("no matching rule for transaction %q in rule set version %q (missing terminal rule)",
		e.TransactionID, e.Version)
}

// CertificationError indicates a candidate rule set was rejected by the
// validator and cannot be loaded into the engine.
type CertificationError struct {
	Version string
	Errors  []string
}

// Error returns the error message.
func (e *CertificationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("rule set %s: validation error: %s", e.Version, e.Errors[0])
	}
	return fmt.Sprintf("rule set %s: %d validation errors: %v", e.Version, len(e.Errors), e.Errors)
}
