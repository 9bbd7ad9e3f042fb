package engine

import (
	"errors"
	"testing"

	"tessera-hq/minos/pkg/rules"
)

func TestEvaluateOperatorComparisons(t *testing.T) {
	tests := []struct {
		name     string
		op       rules.Operator
		actual   any
		expected any
		want     bool
	}{
		// Equality
		{"equal strings", rules.OperatorEqual, "retail", "retail", true},
		{"unequal strings", rules.OperatorEqual, "retail", "travel", false},
		{"equal bools", rules.OperatorEqual, true, true, true},
		{"equal ints", rules.OperatorEqual, 5, 5, true},
		{"int equals float", rules.OperatorEqual, 5, 5.0, true},
		{"float equals int", rules.OperatorEqual, 10.0, 10, true},
		{"string never equals number", rules.OperatorEqual, "5", 5, false},
		{"bool never equals number", rules.OperatorEqual, true, 1, false},
		{"not equal", rules.OperatorNotEqual, "retail", "travel", true},
		{"not equal same", rules.OperatorNotEqual, 5, 5.0, false},
		{"not equal mixed types", rules.OperatorNotEqual, "5", 5, true},

		// Ordering on numbers
		{"greater than", rules.OperatorGreaterThan, 10000.01, 10000, true},
		{"greater than equal values", rules.OperatorGreaterThan, 10000, 10000, false},
		{"less than", rules.OperatorLessThan, 5, 10, true},
		{"greater equal at boundary", rules.OperatorGreaterEqual, 10000, 10000, true},
		{"less equal at boundary", rules.OperatorLessEqual, 30, 30, true},
		{"less equal above", rules.OperatorLessEqual, 31, 30, false},
		{"int vs float ordering", rules.OperatorGreaterThan, 6, 5.5, true},

		// Ordering on strings
		{"string ordering", rules.OperatorLessThan, "apple", "banana", true},
		{"string ordering reversed", rules.OperatorGreaterThan, "apple", "banana", false},

		// Ordering across incompatible types is a non-match
		{"string vs number ordering", rules.OperatorGreaterThan, "10", 5, false},
		{"bool has no ordering", rules.OperatorLessThan, true, false, false},

		// Membership
		{"in list", rules.OperatorIn, "gambling", []any{"gambling", "crypto"}, true},
		{"not in list", rules.OperatorIn, "retail", []any{"gambling", "crypto"}, false},
		{"in typed string list", rules.OperatorIn, "crypto", []string{"gambling", "crypto"}, true},
		{"in int list with float actual", rules.OperatorIn, 5.0, []int{3, 5}, true},
		{"in non-list never matches", rules.OperatorIn, "retail", "retail", false},
		{"not_in excludes member", rules.OperatorNotIn, "gambling", []any{"gambling"}, false},
		{"not_in non-member", rules.OperatorNotIn, "retail", []any{"gambling"}, true},
		{"not_in non-list is mismatch", rules.OperatorNotIn, "retail", "gambling", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateOperator(tt.op, tt.actual, tt.expected)
			if err != nil {
				t.Fatalf("evaluateOperator returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("evaluateOperator(%q, %v, %v) = %v, want %v",
					tt.op, tt.actual, tt.expected, got, tt.want)
			}
		})
	}
}

func TestEvaluateOperatorUnknown(t *testing.T) {
	_, err := evaluateOperator("contains", "a", "b")
	if err == nil {
		t.Fatal("expected error for unknown operator")
	}

	var unknownOp *UnknownOperatorError
	if !errors.As(err, &unknownOp) {
		t.Fatalf("expected UnknownOperatorError, got %T", err)
	}
	if unknownOp.Symbol != "contains" {
		t.Errorf("Symbol = %q, want %q", unknownOp.Symbol, "contains")
	}
}

func TestEvaluateEqualNil(t *testing.T) {
	if !evaluateEqual(nil, nil) {
		t.Error("nil should equal nil")
	}
	if evaluateEqual(nil, "x") || evaluateEqual("x", nil) {
		t.Error("nil should not equal a value")
	}
}
