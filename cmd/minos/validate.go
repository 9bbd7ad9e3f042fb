package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tessera-hq/minos/pkg/cli"
	"tessera-hq/minos/pkg/rules"
	"tessera-hq/minos/pkg/rules/validator"
)

var validateFlags struct {
	file    string
	version string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a rule configuration",
	Long: `Validate a rule configuration against the structural rules:
required fields, known operators, logic modes, outcome ranges, unique rule
ids, and exactly one terminal ALWAYS rule in last position.

Validation is advisory: it reports all problems found and exits non-zero
when any exist.

Examples:
  # Validate a rule configuration file
  minos validate --file rules.yaml

  # Validate a stored configuration version
  minos validate --version v2`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "", "rule configuration file to validate")
	validateCmd.Flags().StringVar(&validateFlags.version, "version", "", "stored configuration version to validate")
	validateCmd.MarkFlagsMutuallyExclusive("file", "version")
}

// validationReport is the machine-readable validation result.
type validationReport struct {
	Valid   bool     `json:"valid"`
	Version string   `json:"version,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	rs, err := validateTarget()
	if err != nil {
		return err
	}

	report := validationReport{
		Version: rs.Version,
		Errors:  validator.ValidateConfig(rs),
	}
	report.Valid = len(report.Errors) == 0

	if outputFormat == "json" {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, report); err != nil {
			return err
		}
	} else {
		if report.Valid {
			fmt.Printf("✓ Configuration valid (%d rules)\n", len(rs.Rules))
		} else {
			fmt.Printf("✗ Configuration invalid (%d problems):\n", len(report.Errors))
			for _, msg := range report.Errors {
				fmt.Printf("  - %s\n", msg)
			}
		}
	}

	if !report.Valid {
		return fmt.Errorf("validation failed with %d problems", len(report.Errors))
	}
	return nil
}

// validateTarget loads the rule set to validate from the file flag or the
// configured store.
func validateTarget() (*rules.RuleSet, error) {
	if validateFlags.file != "" {
		data, err := os.ReadFile(validateFlags.file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", validateFlags.file, err)
		}
		var rs rules.RuleSet
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("failed to parse %q: %w", validateFlags.file, err)
		}
		return &rs, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	version := validateFlags.version
	if version == "" {
		version = cfg.Storage.DefaultVersion
	}

	st, cleanup, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return st.Load(context.Background(), version)
}
