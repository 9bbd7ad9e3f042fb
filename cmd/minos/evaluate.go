package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tessera-hq/minos/pkg/cli"
	"tessera-hq/minos/pkg/engine"
	"tessera-hq/minos/pkg/explain"
	"tessera-hq/minos/pkg/rules"
)

var evaluateFlags struct {
	recordsFile string
	version     string
	explain     bool
	skipInvalid bool
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate transaction records against a rule configuration",
	Long: `Evaluate transaction records against a stored rule configuration.

Records are read as JSON: either a single object or an array of objects.
Each record is evaluated against the rules in order; the first matching
rule decides the outcome.

Examples:
  # Evaluate records from a file
  minos evaluate --records transactions.json

  # Evaluate against a specific configuration version
  minos evaluate --records transactions.json --version v1

  # Include a narrative explanation per decision
  minos evaluate --records transactions.json --explain

  # JSON output
  minos evaluate --records transactions.json -o json`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evaluateFlags.recordsFile, "records", "r", "", "JSON file with a record or an array of records (required)")
	evaluateCmd.Flags().StringVar(&evaluateFlags.version, "version", "", "configuration version (default from config)")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.explain, "explain", false, "include a narrative explanation per decision")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.skipInvalid, "skip-invalid", false, "skip records that fail structural validation")
	evaluateCmd.MarkFlagRequired("records")
}

// evaluateOutput is one evaluated record in command output.
type evaluateOutput struct {
	*rules.EvaluationResult
	Explanation *explain.Explanation `json:"explanation,omitempty"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	records, err := readRecords(evaluateFlags.recordsFile)
	if err != nil {
		return err
	}

	if evaluateFlags.skipInvalid {
		records = filterValid(records)
	}
	if len(records) == 0 {
		return fmt.Errorf("no records to evaluate")
	}

	version := evaluateFlags.version
	if version == "" {
		version = cfg.Storage.DefaultVersion
	}

	st, cleanup, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	rs, err := st.Load(ctx, version)
	if err != nil {
		return err
	}

	eng := engine.New(&engine.Config{Workers: cfg.Engine.Workers}, logger)
	if err := eng.SetRuleSet(rs); err != nil {
		return err
	}

	results, err := eng.EvaluateBatch(records)
	if err != nil {
		return err
	}

	outputs := make([]evaluateOutput, len(results))
	var explainer explain.Explainer
	if evaluateFlags.explain {
		explainer = explain.NewTemplateExplainer()
	}
	for i, result := range results {
		outputs[i] = evaluateOutput{EvaluationResult: result}
		if explainer != nil {
			explanation, err := explainer.Explain(ctx, records[i], result)
			if err != nil {
				return err
			}
			outputs[i].Explanation = explanation
		}
	}

	return printResults(outputs)
}

// readRecords parses a JSON file holding one record object or an array.
func readRecords(path string) ([]rules.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	var batch []rules.Record
	if err := json.Unmarshal(data, &batch); err == nil {
		return batch, nil
	}

	var single rules.Record
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("failed to parse %q: expected a JSON object or array of objects: %w", path, err)
	}
	return []rules.Record{single}, nil
}

// filterValid drops records failing structural validation, reporting each.
func filterValid(records []rules.Record) []rules.Record {
	validator := rules.NewRecordValidator()
	kept := records[:0]
	for _, record := range records {
		if problems := validator.Validate(record); len(problems) > 0 {
			fmt.Fprintf(os.Stderr, "skipping record %s:\n", record.TransactionID())
			for _, msg := range problems {
				fmt.Fprintf(os.Stderr, "  - %s\n", msg)
			}
			continue
		}
		kept = append(kept, record)
	}
	return kept
}

func printResults(outputs []evaluateOutput) error {
	if outputFormat == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, outputs)
	}

	for _, out := range outputs {
		fmt.Printf("%s: %s (score %d) by %s %q: %s\n",
			out.TransactionID, out.Decision, out.RiskScore,
			out.MatchedRuleID, out.MatchedRuleName, out.RuleReason)
		if out.Explanation != nil {
			fmt.Printf("  %s\n", out.Explanation.Text)
		}
	}
	return nil
}
