package engine

import (
	"log/slog"
	"sync"
	"time"

	"tessera-hq/minos/pkg/rules"
	"tessera-hq/minos/pkg/rules/validator"
	"tessera-hq/minos/pkg/telemetry/metrics"
)

// Config contains engine configuration.
type Config struct {
	// Workers is the number of goroutines used by EvaluateBatch. Values
	// below 1 fall back to the default.
	Workers int

	// Metrics receives evaluation observations. Optional.
	Metrics *metrics.EngineMetrics
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{Workers: 4}
}

// Engine evaluates transaction records against a certified rule set
// snapshot. The snapshot is immutable for the duration of any evaluation;
// SetRuleSet swaps it atomically, so concurrent evaluation of independent
// records is always safe.
type Engine struct {
	// ruleset is the certified snapshot, protected by mu.
	ruleset *rules.RuleSet
	mu      sync.RWMutex

	matcher *Matcher
	logger  *slog.Logger
	metrics *metrics.EngineMetrics
	workers int
}

// New creates an evaluation engine with no rule set loaded. Load a
// certified snapshot with SetRuleSet before evaluating.
func New(cfg *Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = DefaultConfig().Workers
	}

	return &Engine{
		matcher: NewMatcher(logger),
		logger:  logger,
		metrics: cfg.Metrics,
		workers: workers,
	}
}

// SetRuleSet certifies a candidate rule set and installs it as the active
// snapshot. The candidate is cloned on the way in, so later mutations by the
// caller cannot race with in-flight evaluations. A candidate that fails
// validation is rejected with CertificationError and the previous snapshot
// is kept.
func (e *Engine) SetRuleSet(rs *rules.RuleSet) error {
	if rs == nil {
		return ErrNilRuleSet
	}

	if errs := validator.ValidateConfig(rs); len(errs) > 0 {
		return &CertificationError{Version: rs.Version, Errors: errs}
	}

	snapshot := rs.Clone()

	e.mu.Lock()
	e.ruleset = snapshot
	e.mu.Unlock()

	e.logger.Info("rule set installed",
		"version", snapshot.Version,
		"rule_count", len(snapshot.Rules),
	)

	return nil
}

// RuleSet returns the active certified snapshot, or nil if none is loaded.
// The returned rule set must be treated as read-only.
func (e *Engine) RuleSet() *rules.RuleSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ruleset
}

// Version returns the version of the active snapshot, or an empty string.
func (e *Engine) Version() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.ruleset == nil {
		return ""
	}
	return e.ruleset.Version
}

// Evaluate evaluates a single record and returns exactly one result: the
// outcome of the first rule, in stored order, that matches. A missing
// transaction id yields the "unknown" sentinel rather than an error.
func (e *Engine) Evaluate(record rules.Record) (*rules.EvaluationResult, error) {
	snapshot := e.RuleSet()
	if snapshot == nil {
		return nil, ErrNilRuleSet
	}
	return e.evaluateAgainst(snapshot, record)
}

// EvaluateBatch evaluates many records independently and returns one result
// per record in input order. Records are spread across a bounded worker
// pool; the snapshot is read-only for the whole batch, so no locking is
// needed between workers. Any evaluation error aborts the batch, since it
// indicates a rule set integrity violation rather than bad record data.
func (e *Engine) EvaluateBatch(records []rules.Record) ([]*rules.EvaluationResult, error) {
	snapshot := e.RuleSet()
	if snapshot == nil {
		return nil, ErrNilRuleSet
	}

	results := make([]*rules.EvaluationResult, len(records))

	workers := e.workers
	if workers > len(records) {
		workers = len(records)
	}

	if workers <= 1 {
		for i, record := range records {
			result, err := e.evaluateAgainst(snapshot, record)
			if err != nil {
				return nil, err
			}
			results[i] = result
		}
		e.observeBatch(len(records))
		return results, nil
	}

	indices := make(chan int)
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				result, err := e.evaluateAgainst(snapshot, records[i])
				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					continue
				}
				results[i] = result
			}
		}()
	}

	for i := range records {
		indices <- i
	}
	close(indices)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	e.observeBatch(len(records))
	return results, nil
}

// evaluateAgainst runs one record against a snapshot and maps the matched
// rule into a fresh EvaluationResult.
func (e *Engine) evaluateAgainst(snapshot *rules.RuleSet, record rules.Record) (*rules.EvaluationResult, error) {
	if record == nil {
		return nil, ErrNilRecord
	}

	start := time.Now()

	matched, err := e.matcher.Select(snapshot, record)
	if err != nil {
		return nil, err
	}

	result := &rules.EvaluationResult{
		TransactionID:   record.TransactionID(),
		MatchedRuleID:   matched.ID,
		MatchedRuleName: matched.Name,
		RiskScore:       matched.Outcome.RiskScore,
		Decision:        matched.Outcome.Decision,
		RuleReason:      matched.Outcome.Reason,
	}

	if e.metrics != nil {
		e.metrics.ObserveEvaluation(string(result.Decision), result.MatchedRuleID, time.Since(start))
	}

	e.logger.Debug("record evaluated",
		"transaction_id", result.TransactionID,
		"rule_id", result.MatchedRuleID,
		"decision", result.Decision,
		"risk_score", result.RiskScore,
	)

	return result, nil
}

func (e *Engine) observeBatch(n int) {
	if e.metrics != nil {
		e.metrics.ObserveBatch(n)
	}
}
