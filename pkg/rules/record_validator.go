package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// RequiredRecordFields are the fields every transaction record must carry
// before it is considered well-formed for ingestion. Evaluation itself
// tolerates missing fields; this check exists so calling tooling can reject
// obviously broken input up front.
var RequiredRecordFields = []string{
	"transaction_id",
	"transaction_amount",
	"transaction_velocity_24h",
	"merchant_category",
	"is_new_device",
	"country_mismatch",
}

// OptionalRecordFields are the known optional transaction fields.
var OptionalRecordFields = []string{
	"account_age_days",
	"account_country",
	"transaction_country",
	"timestamp",
}

// MerchantCategories is the accepted merchant category vocabulary.
var MerchantCategories = []string{"retail", "travel", "gambling", "crypto", "electronics"}

// RecordValidator performs advisory validation and sanitization of inbound
// transaction records. Like the rule set validator, it reports all problems
// as a string list; an empty list is the sole success signal.
type RecordValidator struct {
	known map[string]bool
}

// NewRecordValidator creates a record validator over the known field schema.
func NewRecordValidator() *RecordValidator {
	known := make(map[string]bool, len(RequiredRecordFields)+len(OptionalRecordFields))
	for _, f := range RequiredRecordFields {
		known[f] = true
	}
	for _, f := range OptionalRecordFields {
		known[f] = true
	}
	return &RecordValidator{known: known}
}

// Validate checks a single record and returns the list of problems found.
func (v *RecordValidator) Validate(record Record) []string {
	var errs []string

	for _, f := range RequiredRecordFields {
		if _, ok := record.Field(f); !ok {
			errs = append(errs, fmt.Sprintf("missing required field: %s", f))
		}
	}

	if raw, ok := record.Field("transaction_amount"); ok {
		if n, ok := asNumber(raw); !ok {
			errs = append(errs, "transaction_amount must be numeric")
		} else if n < 0 {
			errs = append(errs, "transaction_amount cannot be negative")
		}
	}

	if raw, ok := record.Field("transaction_velocity_24h"); ok {
		if n, ok := asInteger(raw); !ok {
			errs = append(errs, "transaction_velocity_24h must be an integer")
		} else if n < 0 {
			errs = append(errs, "transaction_velocity_24h cannot be negative")
		}
	}

	if raw, ok := record.Field("merchant_category"); ok {
		cat, isStr := raw.(string)
		if !isStr || !validMerchantCategory(cat) {
			errs = append(errs, fmt.Sprintf("invalid merchant_category, must be one of: %s",
				strings.Join(MerchantCategories, ", ")))
		}
	}

	for _, f := range []string{"is_new_device", "country_mismatch"} {
		if raw, ok := record.Field(f); ok {
			if _, isBool := raw.(bool); !isBool {
				errs = append(errs, fmt.Sprintf("%s must be boolean", f))
			}
		}
	}

	if raw, ok := record.Field("account_age_days"); ok {
		if n, ok := asInteger(raw); !ok {
			errs = append(errs, "account_age_days must be an integer")
		} else if n < 0 {
			errs = append(errs, "account_age_days cannot be negative")
		}
	}

	return errs
}

// Sanitize returns a copy of the record restricted to known fields, with
// lenient type coercion applied: numeric strings become numbers and
// boolean-like values ("true", 1, "yes") become booleans. Unknown fields
// are dropped.
func (v *RecordValidator) Sanitize(record Record) Record {
	out := make(Record, len(record))
	for f := range v.known {
		if val, ok := record[f]; ok {
			out[f] = val
		}
	}

	if raw, ok := out.Field("transaction_amount"); ok {
		if n, ok := coerceFloat(raw); ok {
			out["transaction_amount"] = n
		}
	}
	for _, f := range []string{"transaction_velocity_24h", "account_age_days"} {
		if raw, ok := out.Field(f); ok {
			if n, ok := coerceInt(raw); ok {
				out[f] = n
			}
		}
	}
	for _, f := range []string{"is_new_device", "country_mismatch"} {
		if raw, ok := out.Field(f); ok {
			if b, ok := coerceBool(raw); ok {
				out[f] = b
			}
		}
	}

	return out
}

func validMerchantCategory(cat string) bool {
	for _, c := range MerchantCategories {
		if cat == c {
			return true
		}
	}
	return false
}

// asNumber accepts any numeric kind produced by YAML or JSON decoding.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// asInteger accepts integer kinds plus whole-valued floats (JSON decodes
// all numbers as float64).
func asInteger(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func coerceFloat(v any) (float64, bool) {
	if n, ok := asNumber(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func coerceInt(v any) (int, bool) {
	if n, ok := asInteger(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func coerceBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "t":
			return true, true
		case "false", "0", "no", "f":
			return false, true
		}
		return false, false
	case int:
		return b != 0, true
	case float64:
		return b != 0, true
	default:
		return false, false
	}
}
