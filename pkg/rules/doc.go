/*
Package rules defines the data model for Minos rule sets and transaction
records.

A RuleSet is an ordered, versioned list of rules. Each rule combines an
ordered list of conditions under a logic mode (AND, OR, ALWAYS) and carries
an outcome (risk score, decision, reason). Evaluation is first-match-wins:
the last rule of every valid rule set is an unconditional ALWAYS rule, so
evaluation always terminates with a decision.

The types in this package are plain data and carry YAML and JSON tags so the
same structures round-trip through the config store, the HTTP surface, and
the audit log. Validation lives in the validator subpackage; evaluation lives
in pkg/engine.
*/
package rules
