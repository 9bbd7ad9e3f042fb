package engine

import (
	"tessera-hq/minos/pkg/rules"
)

// evaluateOperator evaluates an operator comparison between actual and
// expected values. Comparing incompatible types is a normal non-match, not
// an error; only an unknown operator symbol is fatal.
func evaluateOperator(op rules.Operator, actual, expected any) (bool, error) {
	switch op {
	case rules.OperatorEqual:
		return evaluateEqual(actual, expected), nil

	case rules.OperatorNotEqual:
		return !evaluateEqual(actual, expected), nil

	case rules.OperatorGreaterThan:
		cmp, ok := compareOrdered(actual, expected)
		return ok && cmp > 0, nil

	case rules.OperatorLessThan:
		cmp, ok := compareOrdered(actual, expected)
		return ok && cmp < 0, nil

	case rules.OperatorGreaterEqual:
		cmp, ok := compareOrdered(actual, expected)
		return ok && cmp >= 0, nil

	case rules.OperatorLessEqual:
		cmp, ok := compareOrdered(actual, expected)
		return ok && cmp <= 0, nil

	case rules.OperatorIn:
		return evaluateIn(actual, expected), nil

	case rules.OperatorNotIn:
		if !isList(expected) {
			// not_in over a non-list is a type mismatch, not "not present".
			return false, nil
		}
		return !evaluateIn(actual, expected), nil

	default:
		return false, &UnknownOperatorError{Symbol: op}
	}
}

// evaluateEqual checks scalar equality without cross-type coercion, except
// that all numeric kinds compare numerically (YAML decodes 5 as int where
// JSON yields float64; they are the same logical value).
func evaluateEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	if an, aok := toFloat64(actual); aok {
		en, eok := toFloat64(expected)
		return eok && an == en
	}

	switch a := actual.(type) {
	case string:
		e, ok := expected.(string)
		return ok && a == e
	case bool:
		e, ok := expected.(bool)
		return ok && a == e
	default:
		return false
	}
}

// compareOrdered compares two values that share an ordered type. It returns
// -1, 0, or 1 and whether the comparison was possible: numbers compare
// numerically, strings lexicographically; booleans and mixed types have no
// ordering.
func compareOrdered(actual, expected any) (int, bool) {
	if an, aok := toFloat64(actual); aok {
		en, eok := toFloat64(expected)
		if !eok {
			return 0, false
		}
		switch {
		case an < en:
			return -1, true
		case an > en:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aok := actual.(string)
	es, eok := expected.(string)
	if aok && eok {
		switch {
		case as < es:
			return -1, true
		case as > es:
			return 1, true
		default:
			return 0, true
		}
	}

	return 0, false
}

// evaluateIn checks membership of actual in the expected list. A non-list
// expected value never matches.
func evaluateIn(actual, expected any) bool {
	for _, elem := range toSlice(expected) {
		if evaluateEqual(actual, elem) {
			return true
		}
	}
	return false
}

// toSlice normalizes the list shapes YAML and JSON decoding produce.
func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	default:
		return nil
	}
}

// isList reports whether a decoded value is a sequence.
func isList(v any) bool {
	return toSlice(v) != nil
}

// toFloat64 widens any numeric kind to float64 for comparison.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
