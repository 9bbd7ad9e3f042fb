/*
Package validator enforces the structural invariants of rule sets before
they may be persisted or handed to the evaluation engine.

Validation is advisory and never mutates its input: both ValidateRule and
ValidateConfig return every problem found as a human-readable string list so
calling tooling can present all errors at once. An empty list is the sole
success signal; callers decide whether to gate a save or a load on it.
*/
package validator
