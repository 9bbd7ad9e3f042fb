package rules

import (
	"strings"
	"testing"
)

func validRecord() Record {
	return Record{
		"transaction_id":           "TXN_001",
		"transaction_amount":       1250.50,
		"transaction_velocity_24h": 3,
		"merchant_category":        "retail",
		"is_new_device":            false,
		"country_mismatch":         false,
	}
}

func TestRecordValidatorValid(t *testing.T) {
	v := NewRecordValidator()
	if errs := v.Validate(validRecord()); len(errs) != 0 {
		t.Errorf("valid record produced errors: %v", errs)
	}
}

func TestRecordValidatorProblems(t *testing.T) {
	v := NewRecordValidator()

	tests := []struct {
		name    string
		mutate  func(Record)
		wantSub string
	}{
		{
			"missing required field",
			func(r Record) { delete(r, "merchant_category") },
			"missing required field: merchant_category",
		},
		{
			"nil counts as missing",
			func(r Record) { r["transaction_amount"] = nil },
			"missing required field: transaction_amount",
		},
		{
			"non-numeric amount",
			func(r Record) { r["transaction_amount"] = "lots" },
			"transaction_amount must be numeric",
		},
		{
			"negative amount",
			func(r Record) { r["transaction_amount"] = -1.0 },
			"transaction_amount cannot be negative",
		},
		{
			"fractional velocity",
			func(r Record) { r["transaction_velocity_24h"] = 2.5 },
			"transaction_velocity_24h must be an integer",
		},
		{
			"unknown merchant category",
			func(r Record) { r["merchant_category"] = "weapons" },
			"invalid merchant_category",
		},
		{
			"non-boolean flag",
			func(r Record) { r["is_new_device"] = "yes" },
			"is_new_device must be boolean",
		},
		{
			"negative account age",
			func(r Record) { r["account_age_days"] = -5 },
			"account_age_days cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := validRecord()
			tt.mutate(record)

			errs := v.Validate(record)
			if len(errs) == 0 {
				t.Fatal("expected validation errors, got none")
			}
			found := false
			for _, e := range errs {
				if strings.Contains(e, tt.wantSub) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v should contain %q", errs, tt.wantSub)
			}
		})
	}
}

func TestRecordValidatorCollectsAllProblems(t *testing.T) {
	v := NewRecordValidator()
	errs := v.Validate(Record{
		"transaction_amount": "bad",
		"merchant_category":  "unknown",
	})
	if len(errs) < 5 {
		t.Errorf("expected all problems reported, got %d: %v", len(errs), errs)
	}
}

func TestSanitize(t *testing.T) {
	v := NewRecordValidator()

	record := Record{
		"transaction_id":           "TXN_001",
		"transaction_amount":       "1250.50",
		"transaction_velocity_24h": "4",
		"is_new_device":            "yes",
		"country_mismatch":         0,
		"merchant_category":        "travel",
		"unexpected_field":         "dropped",
	}

	out := v.Sanitize(record)

	if _, ok := out["unexpected_field"]; ok {
		t.Error("unknown field survived sanitization")
	}
	if got := out["transaction_amount"]; got != 1250.50 {
		t.Errorf("transaction_amount = %v (%T), want 1250.5 float64", got, got)
	}
	if got := out["transaction_velocity_24h"]; got != 4 {
		t.Errorf("transaction_velocity_24h = %v (%T), want 4 int", got, got)
	}
	if got := out["is_new_device"]; got != true {
		t.Errorf("is_new_device = %v, want true", got)
	}
	if got := out["country_mismatch"]; got != false {
		t.Errorf("country_mismatch = %v, want false", got)
	}
	if got := out["merchant_category"]; got != "travel" {
		t.Errorf("merchant_category = %v, want travel", got)
	}

	// Original is untouched.
	if record["transaction_amount"] != "1250.50" {
		t.Error("sanitize mutated input record")
	}
}

func TestSanitizeLeavesUncoercibleValues(t *testing.T) {
	v := NewRecordValidator()
	out := v.Sanitize(Record{"transaction_amount": "not a number"})
	if got := out["transaction_amount"]; got != "not a number" {
		t.Errorf("uncoercible value changed to %v", got)
	}
}
