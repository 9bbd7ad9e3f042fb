package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"tessera-hq/minos/pkg/engine"
	"tessera-hq/minos/pkg/explain"
	"tessera-hq/minos/pkg/rules"
)

// EvaluateRequest is the body of POST /v1/evaluate. Exactly one of Record or
// Records must be set.
type EvaluateRequest struct {
	Record  rules.Record   `json:"record,omitempty"`
	Records []rules.Record `json:"records,omitempty"`

	// Explain requests a narrative alongside each result. Ignored when the
	// server has no explainer configured.
	Explain bool `json:"explain,omitempty"`
}

// EvaluateResponse is the body of a successful POST /v1/evaluate.
type EvaluateResponse struct {
	ConfigVersion string             `json:"config_version"`
	Result        *EvaluatedRecord   `json:"result,omitempty"`
	Results       []*EvaluatedRecord `json:"results,omitempty"`
}

// EvaluatedRecord pairs one evaluation result with its optional explanation.
type EvaluatedRecord struct {
	*rules.EvaluationResult
	Explanation *explain.Explanation `json:"explanation,omitempty"`
}

// RulesResponse is the body of GET /v1/rules.
type RulesResponse struct {
	Version string       `json:"version"`
	Rules   []rules.Rule `json:"rules"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleEvaluate evaluates one record or a batch against the active rule set.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if (req.Record == nil) == (req.Records == nil) {
		s.writeError(w, http.StatusBadRequest,
			errors.New("exactly one of record or records must be set"))
		return
	}

	resp := EvaluateResponse{ConfigVersion: s.engine.Version()}

	if req.Record != nil {
		evaluated, err := s.evaluateOne(r, req.Record, req.Explain)
		if err != nil {
			s.writeEvaluationError(w, err)
			return
		}
		resp.Result = evaluated
	} else {
		results, err := s.engine.EvaluateBatch(req.Records)
		if err != nil {
			s.writeEvaluationError(w, err)
			return
		}
		resp.Results = make([]*EvaluatedRecord, len(results))
		for i, result := range results {
			evaluated := &EvaluatedRecord{EvaluationResult: result}
			s.decorate(r, evaluated, req.Records[i], req.Explain)
			resp.Results[i] = evaluated
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// evaluateOne evaluates a single record, records it, and optionally explains.
func (s *Server) evaluateOne(r *http.Request, record rules.Record, explainIt bool) (*EvaluatedRecord, error) {
	result, err := s.engine.Evaluate(record)
	if err != nil {
		return nil, err
	}
	evaluated := &EvaluatedRecord{EvaluationResult: result}
	s.decorate(r, evaluated, record, explainIt)
	return evaluated, nil
}

// decorate records the result in the audit log and attaches an explanation.
func (s *Server) decorate(r *http.Request, evaluated *EvaluatedRecord, record rules.Record, explainIt bool) {
	s.recorder.Record(r.Context(), evaluated.EvaluationResult, record, s.engine.Version())

	if explainIt && s.explainer != nil {
		explanation, err := s.explainer.Explain(r.Context(), record, evaluated.EvaluationResult)
		if err != nil {
			s.logger.Warn("explanation failed",
				"transaction_id", evaluated.TransactionID,
				"error", err,
			)
			return
		}
		evaluated.Explanation = explanation
	}
}

// handleRules returns the active rule set.
func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	rs := s.engine.RuleSet()
	if rs == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("no rule set loaded"))
		return
	}
	s.writeJSON(w, http.StatusOK, RulesResponse{Version: rs.Version, Rules: rs.Rules})
}

// handleHealth reports liveness. The server is healthy when a rule set is
// loaded.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.engine.RuleSet() == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no rule set loaded"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeEvaluationError maps evaluation errors to HTTP status codes. Rule set
// integrity failures are server-side faults.
func (s *Server) writeEvaluationError(w http.ResponseWriter, err error) {
	var (
		unknownOp *engine.UnknownOperatorError
		noMatch   *engine.NoMatchingRuleError
	)
	switch {
	case errors.Is(err, engine.ErrNilRuleSet):
		s.writeError(w, http.StatusServiceUnavailable, err)
	case errors.As(err, &unknownOp), errors.As(err, &noMatch):
		s.logger.Error("rule set integrity failure", "error", err)
		s.writeError(w, http.StatusInternalServerError, err)
	default:
		s.writeError(w, http.StatusBadRequest, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
