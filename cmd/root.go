package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dataguard/internal/audit"
	"dataguard/internal/backup"
	"dataguard/internal/catalog"
	"dataguard/internal/config"
	"dataguard/internal/disaster"
	"dataguard/internal/entity"
	"dataguard/internal/health"
	"dataguard/internal/incremental"
	"dataguard/internal/integrity"
	"dataguard/internal/logger"
	"dataguard/internal/pitr"
	"dataguard/internal/source"
	"dataguard/internal/storage"
)

var (
	cfg         *config.Config
	log         logger.Logger
	auditLogger *audit.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dataguard",
	Short: "Backup, point-in-time recovery and disaster failover tool",
	Long: `Entity-level backup and recovery for application data.

Features:
- Full and incremental backups with chain validation
- Field-level encryption of sensitive data (AES-256-GCM)
- Point-in-time recovery with conflict resolution
- Retention-based cleanup with audit trail
- Disaster recovery planning and automated failover
- Deep integrity validation of backups and restored data

Storage backends: S3, MinIO, local filesystem.

For help with specific commands, use: dataguard [command] --help`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return nil
		}

		cmd.Flags().Visit(func(f *pflag.Flag) {
			log.Debug("Flag override", "flag", f.Name, "value", f.Value.String())
		})

		if cfg.Debug && cfg.LogLevel != "debug" {
			cfg.LogLevel = "debug"
		}

		return cfg.Validate()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context, config *config.Config, logger logger.Logger) error {
	cfg = config
	log = logger

	auditLogger = audit.NewLogger(logger, cfg.AuditLog)

	rootCmd.Version = fmt.Sprintf("%s (built: %s, commit: %s)",
		cfg.Version, cfg.BuildTime, cfg.GitCommit)

	rootCmd.PersistentFlags().StringVar(&cfg.StorageProvider, "storage", cfg.StorageProvider, "Storage provider (s3|minio|local|memory)")
	rootCmd.PersistentFlags().StringVar(&cfg.StorageBucket, "bucket", cfg.StorageBucket, "Bucket name or base directory")
	rootCmd.PersistentFlags().StringVar(&cfg.StorageRegion, "region", cfg.StorageRegion, "Storage region (S3)")
	rootCmd.PersistentFlags().StringVar(&cfg.StorageEndpoint, "endpoint", cfg.StorageEndpoint, "Custom storage endpoint (MinIO, S3-compatible)")
	rootCmd.PersistentFlags().StringVar(&cfg.StoragePrefix, "prefix", cfg.StoragePrefix, "Key prefix for all storage operations")
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory of per-entity JSON data files")
	rootCmd.PersistentFlags().StringSliceVar(&cfg.Entities, "entities", cfg.Entities, "Entity types covered by backup operations")
	rootCmd.PersistentFlags().IntVar(&cfg.RetentionDays, "retention-days", cfg.RetentionDays, "Backup retention period in days")
	rootCmd.PersistentFlags().IntVar(&cfg.CompressionLevel, "compression", cfg.CompressionLevel, "Compression level (0-9)")
	rootCmd.PersistentFlags().BoolVar(&cfg.EncryptBackups, "encrypt", cfg.EncryptBackups, "Encrypt sensitive fields before persistence")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(failoverCmd)
	rootCmd.AddCommand(statusCmd)
}

// runtime bundles the wired services a command needs
type runtime struct {
	store     storage.Backend
	catalog   *catalog.Catalog
	engine    *backup.Engine
	inc       *incremental.Service
	validator *integrity.Validator
	pitr      *pitr.Service
	monitor   *health.Monitor
}

// buildRuntime wires storage, catalogue and services from the active
// configuration
func buildRuntime(ctx context.Context) (*runtime, error) {
	store, err := storage.NewBackend(&storage.Config{
		Provider:  cfg.StorageProvider,
		Bucket:    cfg.StorageBucket,
		Region:    cfg.StorageRegion,
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Prefix:    cfg.StoragePrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	cat, err := catalog.Load(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup catalogue: %w", err)
	}

	src, err := source.NewJSONDirSource(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data source: %w", err)
	}

	validator := integrity.NewValidator(log)
	inc := incremental.NewService(log)
	engine := backup.New(cfg, log, src, store, cat, validator, inc, auditLogger)

	return &runtime{
		store:     store,
		catalog:   cat,
		engine:    engine,
		inc:       inc,
		validator: validator,
		pitr:      pitr.NewService(log, engine, inc, validator, auditLogger),
		monitor:   health.NewMonitor(log, health.TCPProber{}, cfg.HealthCheckTimeout),
	}, nil
}

// buildDisasterService wires the disaster recovery service on top of a
// runtime
func (r *runtime) buildDisasterService(secondary []health.ServiceEndpoint) *disaster.Service {
	return disaster.NewService(cfg, log, auditLogger, r.validator, r.monitor,
		disaster.LogExecutor{Log: log}, dnsDirector{}, secondary)
}

// backupScope builds the extraction scope from the configured entities
func backupScope() source.Scope {
	var scope source.Scope
	for _, name := range cfg.Entities {
		scope.Entities = append(scope.Entities, entity.Type(name))
	}
	return scope
}
