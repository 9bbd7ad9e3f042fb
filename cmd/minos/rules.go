package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tessera-hq/minos/pkg/cli"
	"tessera-hq/minos/pkg/rules"
	"tessera-hq/minos/pkg/store"
)

var rulesFlags struct {
	version  string
	file     string
	position int
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage rules in a stored configuration",
	Long: `Manage rules in a stored rule configuration version.

Every mutation writes a timestamped backup of the configuration before
saving; if the backup cannot be written the mutation is aborted.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in evaluation order",
	RunE:  runRulesList,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a rule from a file",
	Long: `Add a rule read from a YAML file. Without --position, the rule is
inserted immediately before the terminal ALWAYS rule. If the rule has no id,
the next sequential RULE_NNN id is assigned.

Example rule file:
  name: "High amount"
  logic: AND
  conditions:
    - field: amount
      operator: ">"
      value: 10000
  outcome:
    risk_score: 80
    decision: REVIEW
    reason: "Amount above threshold"`,
	RunE: runRulesAdd,
}

var rulesUpdateCmd = &cobra.Command{
	Use:   "update <rule-id>",
	Short: "Replace a rule by id with the contents of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesUpdate,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a rule by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDelete,
}

var rulesReorderCmd = &cobra.Command{
	Use:   "reorder <rule-id> [rule-id...]",
	Short: "Reorder rules to the given id sequence",
	Long: `Reorder rules to match the given id sequence. Ids not listed are
dropped from the configuration, so the sequence should normally include
every rule. Unknown ids are ignored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRulesReorder,
}

var rulesNextIDCmd = &cobra.Command{
	Use:   "next-id",
	Short: "Print the next sequential generated rule id",
	RunE:  runRulesNextID,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesUpdateCmd, rulesDeleteCmd, rulesReorderCmd, rulesNextIDCmd)

	rulesCmd.PersistentFlags().StringVar(&rulesFlags.version, "version", "", "configuration version (default from config)")
	rulesAddCmd.Flags().StringVarP(&rulesFlags.file, "file", "f", "", "rule file (required)")
	rulesAddCmd.Flags().IntVar(&rulesFlags.position, "position", -1, "insert position (default: before the terminal rule)")
	rulesAddCmd.MarkFlagRequired("file")
	rulesUpdateCmd.Flags().StringVarP(&rulesFlags.file, "file", "f", "", "rule file (required)")
	rulesUpdateCmd.MarkFlagRequired("file")
}

// rulesContext opens the store and resolves the target version.
func rulesContext() (*store.Store, string, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, "", nil, err
	}

	version := rulesFlags.version
	if version == "" {
		version = cfg.Storage.DefaultVersion
	}

	st, cleanup, err := openStore(cfg, logger)
	if err != nil {
		return nil, "", nil, err
	}
	return st, version, cleanup, nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	st, version, cleanup, err := rulesContext()
	if err != nil {
		return err
	}
	defer cleanup()

	rs, err := st.Load(context.Background(), version)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, rs)
	}

	fmt.Printf("Configuration %s (%d rules):\n", rs.Version, len(rs.Rules))
	for i, rule := range rs.Rules {
		conditions := "always"
		if rule.Logic != rules.LogicAlways {
			parts := make([]string, len(rule.Conditions))
			for j, cond := range rule.Conditions {
				parts[j] = fmt.Sprintf("%s %s %v", cond.Field, cond.Operator, cond.Value)
			}
			conditions = strings.Join(parts, fmt.Sprintf(" %s ", rule.Logic))
		}
		fmt.Printf("%3d. %s %q [%s] -> %s (score %d)\n",
			i+1, rule.ID, rule.Name, conditions, rule.Outcome.Decision, rule.Outcome.RiskScore)
	}
	return nil
}

// readRuleFile parses a rule definition from a YAML file.
func readRuleFile(path string) (*rules.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	var rule rules.Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	return &rule, nil
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	st, version, cleanup, err := rulesContext()
	if err != nil {
		return err
	}
	defer cleanup()

	rule, err := readRuleFile(rulesFlags.file)
	if err != nil {
		return err
	}

	var position *int
	if rulesFlags.position >= 0 {
		position = &rulesFlags.position
	}

	id, err := st.AddRule(context.Background(), *rule, version, position)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Rule %s added to %s\n", id, version)
	return nil
}

func runRulesUpdate(cmd *cobra.Command, args []string) error {
	st, version, cleanup, err := rulesContext()
	if err != nil {
		return err
	}
	defer cleanup()

	rule, err := readRuleFile(rulesFlags.file)
	if err != nil {
		return err
	}

	found, err := st.UpdateRule(context.Background(), args[0], *rule, version)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("rule %s not found in %s", args[0], version)
	}
	fmt.Printf("✓ Rule %s updated in %s\n", args[0], version)
	return nil
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	st, version, cleanup, err := rulesContext()
	if err != nil {
		return err
	}
	defer cleanup()

	found, err := st.DeleteRule(context.Background(), args[0], version)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("rule %s not found in %s", args[0], version)
	}
	fmt.Printf("✓ Rule %s deleted from %s\n", args[0], version)
	return nil
}

func runRulesReorder(cmd *cobra.Command, args []string) error {
	st, version, cleanup, err := rulesContext()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := st.ReorderRules(context.Background(), args, version); err != nil {
		return err
	}
	fmt.Printf("✓ Rules reordered in %s\n", version)
	return nil
}

func runRulesNextID(cmd *cobra.Command, args []string) error {
	st, version, cleanup, err := rulesContext()
	if err != nil {
		return err
	}
	defer cleanup()

	rs, err := st.Load(context.Background(), version)
	if err != nil {
		return err
	}
	fmt.Println(st.NextID(rs))
	return nil
}
