package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tessera-hq/minos/pkg/cli"
	"tessera-hq/minos/pkg/store"
)

var backupsFlags struct {
	version string
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Inspect and manage configuration backups",
	Long: `Inspect and manage the timestamped backups written before every
configuration mutation.`,
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups for a configuration version",
	RunE:  runBackupsList,
}

var backupsRestoreCmd = &cobra.Command{
	Use:   "restore <backup-name>",
	Short: "Restore a configuration from a backup",
	Long: `Restore a configuration version from a named backup. The current
live document is backed up before being overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupsRestore,
}

var backupsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Prune backups outside the retention policy",
	Long: `Prune backups according to the configured retention policy
(retention.retention_days and retention.max_backups). Runs once and exits;
the serve command runs the same pruning on a cron schedule.`,
	RunE: runBackupsPrune,
}

func init() {
	rootCmd.AddCommand(backupsCmd)
	backupsCmd.AddCommand(backupsListCmd, backupsRestoreCmd, backupsPruneCmd)

	backupsCmd.PersistentFlags().StringVar(&backupsFlags.version, "version", "", "configuration version (default from config)")
}

func runBackupsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	version := backupsFlags.version
	if version == "" {
		version = cfg.Storage.DefaultVersion
	}

	st, cleanup, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	backups, err := st.ListBackups(context.Background(), version)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, backups)
	}

	if len(backups) == 0 {
		fmt.Printf("No backups for %s\n", version)
		return nil
	}
	fmt.Printf("Backups for %s (oldest first):\n", version)
	for _, b := range backups {
		fmt.Printf("  %s  %s\n", b.CreatedAt.Format("2006-01-02 15:04:05"), b.Name)
	}
	return nil
}

func runBackupsRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	version := backupsFlags.version
	if version == "" {
		version = cfg.Storage.DefaultVersion
	}

	st, cleanup, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := st.RestoreBackup(context.Background(), version, args[0]); err != nil {
		return err
	}
	fmt.Printf("✓ Restored %s from %s\n", version, args[0])
	return nil
}

func runBackupsPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	backend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	pruner := store.NewPruner(backend, store.RetentionConfig{
		RetentionDays: cfg.Retention.RetentionDays,
		MaxBackups:    cfg.Retention.MaxBackups,
	}, logger)

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("✓ Pruned %d backups\n", deleted)
	return nil
}
