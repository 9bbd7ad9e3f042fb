// Package explain turns evaluation results into analyst-facing narratives.
//
// Explainers decorate a finished evaluation: they never alter the decision,
// risk score, or matched rule, only describe them. The package ships a
// deterministic template-based implementation; richer backends can plug in
// behind the Explainer interface.
package explain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tessera-hq/minos/pkg/rules"
)

// Confidence grades how reliable an explanation is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Explanation is the narrative produced for one evaluation result.
type Explanation struct {
	// Text is the human-readable narrative.
	Text string `json:"text"`

	// Confidence grades the narrative, not the decision.
	Confidence Confidence `json:"confidence"`

	// NeedsHumanReview flags explanations an analyst should verify.
	NeedsHumanReview bool `json:"needs_human_review"`

	// ClarifyingQuestions lists follow-ups when the explainer could not
	// fully account for the outcome.
	ClarifyingQuestions []string `json:"clarifying_questions,omitempty"`
}

// Explainer produces a narrative for an evaluation result. Implementations
// must treat the result as read-only.
type Explainer interface {
	Explain(ctx context.Context, record rules.Record, result *rules.EvaluationResult) (*Explanation, error)
}

// TemplateExplainer is the deterministic built-in explainer. It narrates the
// matched rule and the record fields that plausibly drove the match, and
// grades its own confidence by decision severity.
type TemplateExplainer struct {
	// Fields, when set, restricts which record fields are quoted in the
	// narrative. Empty means all scalar fields.
	Fields []string
}

// NewTemplateExplainer creates a template explainer quoting the given record
// fields. With no fields, every scalar field is quoted.
func NewTemplateExplainer(fields ...string) *TemplateExplainer {
	return &TemplateExplainer{Fields: fields}
}

// Explain implements Explainer.
func (e *TemplateExplainer) Explain(_ context.Context, record rules.Record, result *rules.EvaluationResult) (*Explanation, error) {
	if result == nil {
		return nil, fmt.Errorf("explain: result cannot be nil")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Transaction %s was %s with risk score %d.",
		result.TransactionID, decisionVerb(result.Decision), result.RiskScore)
	fmt.Fprintf(&b, " Rule %q (%s) matched: %s.",
		result.MatchedRuleName, result.MatchedRuleID, result.RuleReason)

	if details := e.recordDetails(record); details != "" {
		fmt.Fprintf(&b, " Relevant fields: %s.", details)
	}

	exp := &Explanation{
		Text:       b.String(),
		Confidence: ConfidenceHigh,
	}

	switch result.Decision {
	case rules.DecisionBlock:
		exp.NeedsHumanReview = true
	case rules.DecisionReview:
		exp.NeedsHumanReview = true
		exp.Confidence = ConfidenceMedium
		exp.ClarifyingQuestions = []string{
			fmt.Sprintf("What additional context is available for transaction %s?", result.TransactionID),
		}
	}

	return exp, nil
}

// recordDetails renders the quoted record fields in a stable order.
func (e *TemplateExplainer) recordDetails(record rules.Record) string {
	names := e.Fields
	if len(names) == 0 {
		names = make([]string, 0, len(record))
		for name := range record {
			if name == rules.TransactionIDField {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
	}

	var parts []string
	for _, name := range names {
		v, ok := record.Field(name)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", name, v))
	}
	return strings.Join(parts, ", ")
}

func decisionVerb(d rules.Decision) string {
	switch d {
	case rules.DecisionAllow:
		return "allowed"
	case rules.DecisionBlock:
		return "blocked"
	case rules.DecisionReview:
		return "routed to manual review"
	default:
		return "resolved as " + string(d)
	}
}
