package validator

import (
	"fmt"

	"tessera-hq/minos/pkg/rules"
)

// ValidateRule checks a single rule and returns the list of problems found.
// It verifies required fields, the logic mode, condition well-formedness
// for non-ALWAYS rules, and the outcome invariants.
func ValidateRule(rule *rules.Rule) []string {
	var errs []string

	if rule.ID == "" {
		errs = append(errs, "missing required field: id")
	}
	if rule.Name == "" {
		errs = append(errs, "missing required field: name")
	}
	if rule.Logic == "" {
		errs = append(errs, "missing required field: logic")
	} else if !rule.Logic.Valid() {
		errs = append(errs, fmt.Sprintf("invalid logic: %s, must be AND, OR, or ALWAYS", rule.Logic))
	}

	if rule.Logic != rules.LogicAlways {
		if !rule.HasConditions() {
			errs = append(errs, "non-ALWAYS rules must have at least one condition")
		} else {
			for i, cond := range rule.Conditions {
				errs = append(errs, validateCondition(i, cond)...)
			}
		}
	}

	errs = append(errs, validateOutcome(rule.Outcome)...)

	return errs
}

// validateCondition checks one condition; i is its zero-based position.
func validateCondition(i int, cond rules.Condition) []string {
	var errs []string

	if cond.Field == "" {
		errs = append(errs, fmt.Sprintf("condition %d: missing field", i+1))
	}
	switch {
	case cond.Operator == "":
		errs = append(errs, fmt.Sprintf("condition %d: missing operator", i+1))
	case !cond.Operator.Valid():
		errs = append(errs, fmt.Sprintf("condition %d: unknown operator %q", i+1, cond.Operator))
	case cond.Operator.RequiresList() && !isList(cond.Value):
		errs = append(errs, fmt.Sprintf("condition %d: operator %q requires a list value", i+1, cond.Operator))
	}
	if cond.Value == nil {
		errs = append(errs, fmt.Sprintf("condition %d: missing value", i+1))
	}

	return errs
}

// validateOutcome checks the outcome invariants: risk score 0-100, a known
// decision, and a non-empty reason.
func validateOutcome(out rules.Outcome) []string {
	var errs []string

	if out.RiskScore < 0 || out.RiskScore > 100 {
		errs = append(errs, fmt.Sprintf("risk_score must be an integer 0-100, got %d", out.RiskScore))
	}
	if out.Decision == "" {
		errs = append(errs, "outcome missing decision")
	} else if !out.Decision.Valid() {
		errs = append(errs, fmt.Sprintf("invalid decision: %s, must be ALLOW, REVIEW, or BLOCK", out.Decision))
	}
	if out.Reason == "" {
		errs = append(errs, "outcome missing reason")
	}

	return errs
}

// ValidateConfig checks an entire rule set. In addition to per-rule
// validation (prefixed with rule position and id for traceability) it
// enforces the structural invariants: at least one rule, exactly one
// terminal ALWAYS rule positioned last, and pairwise-distinct rule ids.
// A misplaced ALWAYS rule is flagged rather than silently ignored.
func ValidateConfig(rs *rules.RuleSet) []string {
	var errs []string

	if rs == nil || len(rs.Rules) == 0 {
		return []string{"rule set must contain at least one rule"}
	}

	hasTerminal := false
	for i := range rs.Rules {
		if !rs.Rules[i].IsTerminal() {
			continue
		}
		if hasTerminal {
			errs = append(errs, fmt.Sprintf("duplicate ALWAYS rule %q at position %d, only one terminal rule is allowed",
				rs.Rules[i].ID, i+1))
			continue
		}
		hasTerminal = true
		if i != len(rs.Rules)-1 {
			errs = append(errs, fmt.Sprintf("ALWAYS rule %q at position %d must be last", rs.Rules[i].ID, i+1))
		}
	}
	if !hasTerminal {
		errs = append(errs, "rule set must end with a terminal rule (logic: ALWAYS)")
	}

	seen := make(map[string]bool, len(rs.Rules))
	for i := range rs.Rules {
		id := rs.Rules[i].ID
		if id == "" {
			continue // reported by per-rule validation
		}
		if seen[id] {
			errs = append(errs, fmt.Sprintf("duplicate rule id: %s", id))
		}
		seen[id] = true
	}

	for i := range rs.Rules {
		id := rs.Rules[i].ID
		if id == "" {
			id = "unknown"
		}
		for _, e := range ValidateRule(&rs.Rules[i]) {
			errs = append(errs, fmt.Sprintf("rule %d (%s): %s", i+1, id, e))
		}
	}

	return errs
}

// isList reports whether a decoded YAML/JSON value is a sequence.
func isList(v any) bool {
	switch v.(type) {
	case []any, []string, []int, []float64:
		return true
	default:
		return false
	}
}
