package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tessera-hq/minos/pkg/audit"
	"tessera-hq/minos/pkg/config"
	"tessera-hq/minos/pkg/engine"
	"tessera-hq/minos/pkg/explain"
	"tessera-hq/minos/pkg/rules"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRuleSet() *rules.RuleSet {
	return &rules.RuleSet{
		Version: "v2",
		Rules: []rules.Rule{
			{
				ID:    "RULE_001",
				Name:  "High value crypto",
				Logic: rules.LogicAnd,
				Conditions: []rules.Condition{
					{Field: "merchant_category", Operator: rules.OperatorEqual, Value: "crypto"},
					{Field: "transaction_amount", Operator: rules.OperatorGreaterThan, Value: 5000},
				},
				Outcome: rules.Outcome{RiskScore: 90, Decision: rules.DecisionBlock, Reason: "Large crypto purchase"},
			},
			{
				ID:    "DEFAULT",
				Name:  "Default allow",
				Logic: rules.LogicAlways,
				Outcome: rules.Outcome{
					RiskScore: 10, Decision: rules.DecisionAllow, Reason: "No risk rule matched",
				},
			},
		},
	}
}

type memoryLog struct {
	entries []*audit.Entry
}

func (m *memoryLog) Insert(_ context.Context, entry *audit.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryLog) Query(context.Context, audit.Query) ([]*audit.Entry, error) {
	return m.entries, nil
}
func (m *memoryLog) Count(context.Context) (int, error)            { return len(m.entries), nil }
func (m *memoryLog) Prune(context.Context, time.Time) (int, error) { return 0, nil }
func (m *memoryLog) Close() error                                  { return nil }

func newTestServer(t *testing.T, opts Options) (*Server, *engine.Engine) {
	t.Helper()

	eng := engine.New(&engine.Config{Workers: 2}, testLogger())
	if err := eng.SetRuleSet(testRuleSet()); err != nil {
		t.Fatalf("SetRuleSet() error = %v", err)
	}

	cfg := &config.ServerConfig{
		ListenAddress:   "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	}
	return NewServer(cfg, eng, testLogger(), opts), eng
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v\n%s", err, rec.Body.String())
	}
	return v
}

func TestEvaluateSingleRecord(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := doRequest(t, s, http.MethodPost, "/v1/evaluate", EvaluateRequest{
		Record: rules.Record{
			"transaction_id":     "txn-1",
			"transaction_amount": 20000,
			"merchant_category":  "crypto",
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse[EvaluateResponse](t, rec)

	if resp.ConfigVersion != "v2" {
		t.Errorf("ConfigVersion = %q, want v2", resp.ConfigVersion)
	}
	if resp.Result == nil {
		t.Fatal("Result is nil")
	}
	if resp.Results != nil {
		t.Error("Results should be empty for a single record")
	}
	if resp.Result.MatchedRuleID != "RULE_001" {
		t.Errorf("MatchedRuleID = %q, want RULE_001", resp.Result.MatchedRuleID)
	}
	if resp.Result.Decision != rules.DecisionBlock {
		t.Errorf("Decision = %q, want %q", resp.Result.Decision, rules.DecisionBlock)
	}
	if resp.Result.Explanation != nil {
		t.Error("Explanation set without explain flag")
	}
}

func TestEvaluateBatch(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := doRequest(t, s, http.MethodPost, "/v1/evaluate", EvaluateRequest{
		Records: []rules.Record{
			{"transaction_id": "txn-1", "transaction_amount": 20000, "merchant_category": "crypto"},
			{"transaction_id": "txn-2", "transaction_amount": 50, "merchant_category": "retail"},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse[EvaluateResponse](t, rec)

	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Results[0].MatchedRuleID != "RULE_001" {
		t.Errorf("Results[0].MatchedRuleID = %q, want RULE_001", resp.Results[0].MatchedRuleID)
	}
	if resp.Results[1].MatchedRuleID != "DEFAULT" {
		t.Errorf("Results[1].MatchedRuleID = %q, want DEFAULT", resp.Results[1].MatchedRuleID)
	}
}

func TestEvaluateWithExplanation(t *testing.T) {
	s, _ := newTestServer(t, Options{Explainer: explain.NewTemplateExplainer()})

	rec := doRequest(t, s, http.MethodPost, "/v1/evaluate", EvaluateRequest{
		Record: rules.Record{
			"transaction_id":     "txn-1",
			"transaction_amount": 20000,
			"merchant_category":  "crypto",
		},
		Explain: true,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse[EvaluateResponse](t, rec)

	if resp.Result.Explanation == nil {
		t.Fatal("Explanation missing")
	}
	if !strings.Contains(resp.Result.Explanation.Text, "txn-1") {
		t.Errorf("Explanation.Text = %q", resp.Result.Explanation.Text)
	}
	if !resp.Result.Explanation.NeedsHumanReview {
		t.Error("blocked transaction should flag NeedsHumanReview")
	}
}

func TestEvaluateRecordsAudit(t *testing.T) {
	log := &memoryLog{}
	s, _ := newTestServer(t, Options{Recorder: audit.NewRecorder(log, testLogger())})

	rec := doRequest(t, s, http.MethodPost, "/v1/evaluate", EvaluateRequest{
		Records: []rules.Record{
			{"transaction_id": "txn-1", "transaction_amount": 20000, "merchant_category": "crypto"},
			{"transaction_id": "txn-2", "transaction_amount": 50, "merchant_category": "retail"},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}
	if len(log.entries) != 2 {
		t.Fatalf("audit log has %d entries, want 2", len(log.entries))
	}
	if log.entries[0].TransactionID != "txn-1" || log.entries[1].TransactionID != "txn-2" {
		t.Errorf("audit entries = %q, %q", log.entries[0].TransactionID, log.entries[1].TransactionID)
	}
	if log.entries[0].ConfigVersion != "v2" {
		t.Errorf("ConfigVersion = %q, want v2", log.entries[0].ConfigVersion)
	}
}

func TestEvaluateBadRequests(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"record":`},
		{"neither record nor records", `{}`},
		{"both record and records", `{"record":{"transaction_id":"a"},"records":[{"transaction_id":"b"}]}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/evaluate", strings.NewReader(test.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400\n%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestEvaluateWithoutRuleSet(t *testing.T) {
	eng := engine.New(nil, testLogger())
	cfg := &config.ServerConfig{ListenAddress: "127.0.0.1:0", ShutdownTimeout: time.Second}
	s := NewServer(cfg, eng, testLogger(), Options{})

	rec := doRequest(t, s, http.MethodPost, "/v1/evaluate", EvaluateRequest{
		Record: rules.Record{"transaction_id": "txn-1"},
	})

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503\n%s", rec.Code, rec.Body.String())
	}
}

func TestRulesEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := doRequest(t, s, http.MethodGet, "/v1/rules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse[RulesResponse](t, rec)

	if resp.Version != "v2" {
		t.Errorf("Version = %q, want v2", resp.Version)
	}
	if len(resp.Rules) != 2 {
		t.Errorf("got %d rules, want 2", len(resp.Rules))
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := doRequest(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	empty := engine.New(nil, testLogger())
	cfg := &config.ServerConfig{ListenAddress: "127.0.0.1:0", ShutdownTimeout: time.Second}
	notReady := NewServer(cfg, empty, testLogger(), Options{})
	rec = doRequest(t, notReady, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := doRequest(t, s, http.MethodGet, "/v1/evaluate", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
