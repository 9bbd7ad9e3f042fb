/*
Package audit persists an append-only trail of evaluation decisions.

Every recorded entry captures the evaluation result together with a
snapshot of the record that produced it and the rule set version in force,
so a reviewer can reconstruct exactly why a transaction was allowed,
reviewed, or blocked. Entries are written to SQLite and identified by
generated UUIDs; a retention pruner can drop entries past a configured age.
*/
package audit
