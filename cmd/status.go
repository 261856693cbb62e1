package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dataguard/internal/catalog"
)

// statusCmd displays configuration and catalogue state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and backup catalogue summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		displayHeader()
		displayConfiguration()

		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}
		return displayCatalog(rt)
	},
}

func displayHeader() {
	fmt.Println("==============================================================")
	fmt.Println(" DataGuard Backup & Recovery")
	fmt.Println("==============================================================")
	fmt.Printf("Version: %s (built: %s, commit: %s)\n\n", cfg.Version, cfg.BuildTime, cfg.GitCommit)
}

func displayConfiguration() {
	fmt.Println("Configuration:")
	fmt.Printf("  Storage:        %s (%s)\n", cfg.StorageProvider, cfg.StorageBucket)
	fmt.Printf("  Data directory: %s\n", cfg.DataDir)
	fmt.Printf("  Entities:       %v\n", cfg.Entities)
	fmt.Printf("  Retention:      %d days\n", cfg.RetentionDays)
	fmt.Printf("  Compression:    level %d\n", cfg.CompressionLevel)
	if cfg.EncryptBackups {
		fmt.Printf("  Encryption:     enabled (%d sensitive fields)\n", len(cfg.SensitiveFields))
	} else {
		fmt.Printf("  Encryption:     disabled\n")
	}
	fmt.Printf("  RPO target:     %s\n", cfg.RPOTarget)
	fmt.Printf("  RTO target:     %s\n", cfg.RTOTarget)
	fmt.Println()
}

func displayCatalog(rt *runtime) error {
	stats := rt.catalog.Summarize()
	fmt.Println("Backup catalogue:")
	fmt.Printf("  Backups:     %d (%d full, %d incremental)\n",
		stats.TotalBackups, stats.ByType[catalog.TypeFull], stats.ByType[catalog.TypeIncremental])
	fmt.Printf("  Stored size: %s\n", stats.TotalSizeText)
	if stats.NewestBackup != nil {
		fmt.Printf("  Newest:      %s\n", stats.NewestBackup.Format(time.RFC3339))
	}
	if stats.OldestBackup != nil {
		fmt.Printf("  Oldest:      %s\n", stats.OldestBackup.Format(time.RFC3339))
	}

	report := rt.inc.ValidateBackupChain(rt.catalog.List())
	if report.IsValid {
		fmt.Printf("  Chains:      %d, all valid\n", len(report.ValidChains))
	} else {
		fmt.Printf("  Chains:      %d broken links detected (run 'dataguard verify chain')\n",
			len(report.BrokenChains))
	}
	return nil
}
