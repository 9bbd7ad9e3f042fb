package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tessera-hq/minos/pkg/audit"
	"tessera-hq/minos/pkg/cli"
	"tessera-hq/minos/pkg/rules"
)

var auditFlags struct {
	transactionID string
	decision      string
	since         string
	until         string
	limit         int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the decision audit log",
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query recorded evaluation decisions",
	Long: `Query recorded evaluation decisions, newest first.

Examples:
  # Last 100 decisions
  minos audit query

  # Decisions for one transaction
  minos audit query --transaction-id TXN_00042

  # Blocked transactions since a point in time
  minos audit query --decision BLOCK --since 2026-08-01T00:00:00Z`,
	RunE: runAuditQuery,
}

var auditCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the total number of recorded decisions",
	RunE:  runAuditCount,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditCountCmd)

	auditQueryCmd.Flags().StringVar(&auditFlags.transactionID, "transaction-id", "", "filter by transaction id")
	auditQueryCmd.Flags().StringVar(&auditFlags.decision, "decision", "", "filter by decision (ALLOW, REVIEW, BLOCK)")
	auditQueryCmd.Flags().StringVar(&auditFlags.since, "since", "", "lower time bound (RFC 3339)")
	auditQueryCmd.Flags().StringVar(&auditFlags.until, "until", "", "upper time bound (RFC 3339)")
	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", audit.DefaultQueryLimit, "maximum entries returned")
}

// openAuditLog opens the configured audit database.
func openAuditLog() (*audit.SQLiteLog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return audit.NewSQLiteLog(audit.DefaultSQLiteLogConfig(cfg.Audit.Path), logger)
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	log, err := openAuditLog()
	if err != nil {
		return err
	}
	defer log.Close()

	q := audit.Query{
		TransactionID: auditFlags.transactionID,
		Decision:      rules.Decision(auditFlags.decision),
		Limit:         auditFlags.limit,
	}
	if auditFlags.since != "" {
		t, err := time.Parse(time.RFC3339, auditFlags.since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		q.Since = t
	}
	if auditFlags.until != "" {
		t, err := time.Parse(time.RFC3339, auditFlags.until)
		if err != nil {
			return fmt.Errorf("invalid --until: %w", err)
		}
		q.Until = t
	}

	entries, err := log.Query(context.Background(), q)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, entries)
	}

	if len(entries) == 0 {
		fmt.Println("No matching entries")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  %s (score %d) by %s: %s\n",
			e.EvaluatedAt.Format("2006-01-02 15:04:05"),
			e.TransactionID, e.Decision, e.RiskScore, e.RuleID, e.Reason)
	}
	return nil
}

func runAuditCount(cmd *cobra.Command, args []string) error {
	log, err := openAuditLog()
	if err != nil {
		return err
	}
	defer log.Close()

	n, err := log.Count(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}
