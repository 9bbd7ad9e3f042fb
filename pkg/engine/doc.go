/*
Package engine implements deterministic rule evaluation for transaction
records.

Evaluation is purely functional: an Engine holds an immutable, certified
rule set snapshot and evaluates records against it with first-match-wins
ordering. Condition matching dispatches on a closed operator set
(>, <, >=, <=, ==, !=, in, not_in) with no implicit type coercion; a missing
record field makes the condition false rather than failing the evaluation.

Because every certified rule set terminates in an ALWAYS rule, Evaluate
always produces exactly one EvaluationResult per record. A fall-through
(NoMatchingRuleError) or an unknown operator (UnknownOperatorError) signals
a rule set that escaped validation and is treated as a fatal integrity
error, not a decision outcome.

Batch evaluation is order-preserving and parallelized across a bounded
worker pool; records are independent and the snapshot is read-only for the
duration of the batch, so no locking is required.
*/
package engine
