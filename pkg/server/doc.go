// Package server provides the HTTP evaluation API for Minos.
//
// This package ties together the evaluation engine, the audit recorder, and
// the explanation boundary, and provides server lifecycle management
// including start, shutdown, and health checks.
//
// # Endpoints
//
//   - POST /v1/evaluate evaluates a single record or a batch
//   - GET  /v1/rules returns the active rule set
//   - GET  /healthz reports liveness
//   - GET  /metrics exposes Prometheus metrics (when enabled)
//
// Evaluation is read-only with respect to the rule set; rule mutations go
// through the minos CLI and the configuration store.
package server
