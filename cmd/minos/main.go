// Minos is a deterministic transaction rule evaluation engine and rule set
// configuration manager.
//
// It evaluates transaction records against versioned, ordered rule sets,
// providing:
//   - First-match rule evaluation with auditable outcomes
//   - Versioned rule configuration storage with automatic backups
//   - Rule set validation and governance tooling
//   - An HTTP evaluation API with Prometheus metrics
//
// Usage:
//
//	# Start the evaluation server with default configuration
//	minos serve
//
//	# Start with custom configuration file
//	minos serve --config /path/to/config.yaml
//
//	# Validate a rule configuration
//	minos validate --file rules.yaml
//
//	# Evaluate records from a file
//	minos evaluate --records transactions.json
//
//	# Manage rules in a stored configuration
//	minos rules list
//	minos rules delete RULE_003
//
//	# Inspect and prune configuration backups
//	minos backups list
package main

func main() {
	Execute()
}
