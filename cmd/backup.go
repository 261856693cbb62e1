package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dataguard/internal/backup"
	"dataguard/internal/catalog"
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create full or incremental backups",
	Long: `Create backups of the configured entity types.

Backup Modes:
  full         - Complete snapshot of all scoped entities
  incremental  - Only changes since the current chain tip

Examples:
  # Full backup of the default entities
  dataguard backup full

  # Incremental backup chained to the latest full backup
  dataguard backup incremental

  # Full backup of a subset of entities to S3
  dataguard backup full --entities users,projects --storage s3 --bucket my-backups`,
}

var backupFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Create a full backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}

		result := rt.engine.PerformFullBackup(cmd.Context(), backupScope())
		printBackupResult(result)
		if !result.Success {
			return fmt.Errorf("full backup failed: %s", result.Error)
		}
		return nil
	},
}

var backupIncrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Create an incremental backup",
	Long: `Create an incremental backup containing only the changes since the
current chain tip. Requires at least one prior full backup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}

		result := rt.engine.PerformIncrementalBackup(cmd.Context(), backupScope())
		printBackupResult(result)
		if !result.Success {
			return fmt.Errorf("incremental backup failed: %s", result.Error)
		}
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupFullCmd)
	backupCmd.AddCommand(backupIncrementalCmd)
}

func printBackupResult(result *backup.Result) {
	if !result.Success {
		fmt.Printf("Backup failed: %s (after %s)\n", result.Error, result.Duration.Round(time.Millisecond))
		return
	}

	fmt.Printf("Backup complete: %s\n", result.BackupID)
	fmt.Printf("  Records:  %d\n", result.Statistics.TotalRecords)
	fmt.Printf("  Size:     %s (stored %s)\n",
		catalog.FormatSize(result.Statistics.OriginalSize),
		catalog.FormatSize(result.Statistics.CompressedSize))
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))
	if result.ChangeLog != nil {
		fmt.Printf("  Changes:  %d created, %d updated, %d deleted\n",
			result.ChangeLog.Created, result.ChangeLog.Updated, result.ChangeLog.Deleted)
	}
}
