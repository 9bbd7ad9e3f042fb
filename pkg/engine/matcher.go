package engine

import (
	"log/slog"

	"tessera-hq/minos/pkg/rules"
)

// Matcher evaluates conditions and rules against transaction records.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a new rule matcher.
func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger}
}

// EvaluateCondition evaluates a single condition against a record. A field
// absent from the record (or set to the no-value marker) makes the
// condition false unconditionally; it never raises. The only error is an
// unknown operator, which indicates a rule set that escaped validation.
func (m *Matcher) EvaluateCondition(cond rules.Condition, record rules.Record) (bool, error) {
	actual, ok := record.Field(cond.Field)
	if !ok {
		m.logger.Debug("condition field absent from record",
			"field", cond.Field,
		)
		return false, nil
	}

	matched, err := evaluateOperator(cond.Operator, actual, cond.Value)
	if err != nil {
		return false, err
	}

	m.logger.Debug("condition evaluated",
		"field", cond.Field,
		"operator", cond.Operator,
		"expected", cond.Value,
		"actual", actual,
		"matched", matched,
	)

	return matched, nil
}

// EvaluateRule evaluates a rule's conditions under its logic mode.
// ALWAYS matches unconditionally regardless of any conditions present; AND
// and OR short-circuit, which is safe because condition evaluation is pure.
// An unknown logic mode is rejected by validation, but defensively returns
// false here.
func (m *Matcher) EvaluateRule(rule *rules.Rule, record rules.Record) (bool, error) {
	switch rule.Logic {
	case rules.LogicAlways:
		return true, nil

	case rules.LogicAnd:
		if !rule.HasConditions() {
			return false, nil
		}
		for _, cond := range rule.Conditions {
			matched, err := m.EvaluateCondition(cond, record)
			if err != nil {
				return false, err
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil

	case rules.LogicOr:
		for _, cond := range rule.Conditions {
			matched, err := m.EvaluateCondition(cond, record)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, nil
	}
}

// Select scans rules in stored order and returns the first rule that
// matches the record. A certified rule set always terminates in an ALWAYS
// rule, so falling through the whole list signals a broken invariant and
// returns NoMatchingRuleError.
func (m *Matcher) Select(rs *rules.RuleSet, record rules.Record) (*rules.Rule, error) {
	for i := range rs.Rules {
		matched, err := m.EvaluateRule(&rs.Rules[i], record)
		if err != nil {
			return nil, err
		}
		if matched {
			return &rs.Rules[i], nil
		}
	}

	return nil, &NoMatchingRuleError{
		TransactionID: record.TransactionID(),
		Version:       rs.Version,
	}
}
