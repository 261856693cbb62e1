package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dataguard/internal/catalog"
)

var cleanupDryRun bool

// cleanupCmd sweeps expired backups per the retention policy
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete backups past their retention expiry",
	Long: `Sweep the backup catalogue and delete every backup whose retention
period has expired. Backups still inside their retention window are never
touched. Every backup produces one audit entry, deleted or retained.

Examples:
  # Show what would be deleted without removing anything
  dataguard cleanup --dry-run

  # Delete expired backups
  dataguard cleanup`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}

		result := rt.engine.CleanupExpiredBackups(cmd.Context(), cleanupDryRun)

		verb := "Deleted"
		if result.DryRun {
			verb = "Would delete"
		}
		fmt.Printf("%s %d backups, retained %d, reclaimed %s\n",
			verb, result.DeletedBackups, result.RetainedBackups,
			catalog.FormatSize(result.StorageReclaimed))
		for _, id := range result.DeletedIDs {
			fmt.Printf("  - %s\n", id)
		}

		if !result.Success {
			for _, msg := range result.Errors {
				fmt.Printf("  error: %s\n", msg)
			}
			return fmt.Errorf("cleanup finished with %d errors", len(result.Errors))
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Report expired backups without deleting them")
}
