package rules

import (
	"fmt"
	"regexp"
	"strconv"
)

// Logic is the combinator applied across a rule's conditions.
type Logic string

const (
	// LogicAnd matches when every condition matches.
	LogicAnd Logic = "AND"
	// LogicOr matches when at least one condition matches.
	LogicOr Logic = "OR"
	// LogicAlways matches unconditionally. Exactly one ALWAYS rule must
	// terminate every rule set.
	LogicAlways Logic = "ALWAYS"
)

// Valid returns true if the logic mode is one of the known combinators.
func (l Logic) Valid() bool {
	switch l {
	case LogicAnd, LogicOr, LogicAlways:
		return true
	default:
		return false
	}
}

// Decision is the outcome decision for a matched rule.
type Decision string

const (
	DecisionAllow  Decision = "ALLOW"
	DecisionReview Decision = "REVIEW"
	DecisionBlock  Decision = "BLOCK"
)

// Valid returns true if the decision is one of the known enum values.
func (d Decision) Valid() bool {
	switch d {
	case DecisionAllow, DecisionReview, DecisionBlock:
		return true
	default:
		return false
	}
}

// Operator is a comparison operator symbol used in conditions.
type Operator string

const (
	OperatorGreaterThan  Operator = ">"
	OperatorLessThan     Operator = "<"
	OperatorGreaterEqual Operator = ">="
	OperatorLessEqual    Operator = "<="
	OperatorEqual        Operator = "=="
	OperatorNotEqual     Operator = "!="
	OperatorIn           Operator = "in"
	OperatorNotIn        Operator = "not_in"
)

// Operators is the closed set of supported operator symbols.
var Operators = []Operator{
	OperatorGreaterThan,
	OperatorLessThan,
	OperatorGreaterEqual,
	OperatorLessEqual,
	OperatorEqual,
	OperatorNotEqual,
	OperatorIn,
	OperatorNotIn,
}

// Valid returns true if the operator is in the supported set.
func (o Operator) Valid() bool {
	for _, op := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// RequiresList returns true if the operator expects a list-valued operand.
func (o Operator) RequiresList() bool {
	return o == OperatorIn || o == OperatorNotIn
}

// Condition compares a single record field against an expected value.
// Value is a scalar (string, number, boolean) or, for in/not_in, a list of
// scalars. A condition whose field is absent from the record evaluates to
// false rather than erroring.
type Condition struct {
	Field    string   `yaml:"field" json:"field"`
	Operator Operator `yaml:"operator" json:"operator"`
	Value    any      `yaml:"value" json:"value"`
}

// Outcome is the decision payload attached to a rule.
type Outcome struct {
	RiskScore int      `yaml:"risk_score" json:"risk_score"`
	Decision  Decision `yaml:"decision" json:"decision"`
	Reason    string   `yaml:"reason" json:"reason"`
}

// Rule is a named, ordered condition set plus an outcome, evaluated as a
// unit. Rules generated by tooling carry ids of the form RULE_001; the
// terminal rule conventionally uses an explicit id such as DEFAULT.
type Rule struct {
	ID         string      `yaml:"id" json:"id"`
	Name       string      `yaml:"name" json:"name"`
	Logic      Logic       `yaml:"logic" json:"logic"`
	Conditions []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Outcome    Outcome     `yaml:"outcome" json:"outcome"`
}

// IsTerminal returns true if this is an unconditional ALWAYS rule.
func (r *Rule) IsTerminal() bool {
	return r.Logic == LogicAlways
}

// HasConditions returns true if the rule carries at least one condition.
func (r *Rule) HasConditions() bool {
	return len(r.Conditions) > 0
}

// RuleSet is an ordered, versioned collection of rules.
type RuleSet struct {
	Version string `yaml:"version" json:"version"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// TerminalIndex returns the index of the first ALWAYS rule, or len(Rules)
// if no terminal rule exists. A missing terminal rule is an invariant
// violation surfaced by the validator; callers that insert rules use the
// end of the list as the fallback position.
func (rs *RuleSet) TerminalIndex() int {
	for i := range rs.Rules {
		if rs.Rules[i].IsTerminal() {
			return i
		}
	}
	return len(rs.Rules)
}

// FindRule returns the index of the rule with the given id, or -1.
func (rs *RuleSet) FindRule(id string) int {
	for i := range rs.Rules {
		if rs.Rules[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the rule set. The engine evaluates against
// an immutable snapshot; cloning on handoff keeps store mutations from
// racing with in-flight batches.
func (rs *RuleSet) Clone() *RuleSet {
	out := &RuleSet{
		Version: rs.Version,
		Rules:   make([]Rule, len(rs.Rules)),
	}
	for i, r := range rs.Rules {
		cloned := r
		if r.Conditions != nil {
			cloned.Conditions = make([]Condition, len(r.Conditions))
			copy(cloned.Conditions, r.Conditions)
		}
		out.Rules[i] = cloned
	}
	return out
}

// generatedIDPattern matches tool-generated rule ids (RULE_001, RULE_042).
// Ids outside the pattern (such as DEFAULT) are ignored for numbering.
var generatedIDPattern = regexp.MustCompile(`^RULE_([0-9]+)$`)

// NextID returns the next free generated rule id for the rule set: one
// greater than the highest RULE_NNN currently present, or RULE_001 when no
// generated ids exist.
func (rs *RuleSet) NextID() string {
	max := 0
	for i := range rs.Rules {
		m := generatedIDPattern.FindStringSubmatch(rs.Rules[i].ID)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("RULE_%03d", max+1)
}
