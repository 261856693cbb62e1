package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration options
type Config struct {
	// Version information
	Version   string
	BuildTime string
	GitCommit string

	// Storage backend
	StorageProvider string // "s3", "minio", "local", "memory"
	StorageBucket   string // Bucket or base directory
	StorageRegion   string
	StorageEndpoint string
	StoragePrefix   string
	AccessKey       string
	SecretKey       string

	// Data source
	DataDir string // Directory of per-entity JSON files for CLI runs

	// Backup options
	Entities         []string // Entity types covered by scheduled backups
	RetentionDays    int
	CompressionLevel int
	EncryptBackups   bool
	EncryptionKey    string   // Passphrase; the engine derives the AES key
	SensitiveFields  []string // Record fields encrypted before persistence

	// Recovery objectives
	RPOTarget time.Duration // Maximum tolerable data-loss window
	RTOTarget time.Duration // Maximum tolerable restore time

	// Failover
	HealthCheckTimeout time.Duration
	SecondarySite      string

	// Output options
	Debug     bool
	LogLevel  string
	LogFormat string
	AuditLog  bool
}

// New creates a new configuration with default values
func New() *Config {
	return &Config{
		// Storage defaults
		StorageProvider: getEnvString("DG_STORAGE_PROVIDER", "local"),
		StorageBucket:   getEnvString("DG_STORAGE_BUCKET", getDefaultBackupDir()),
		StorageRegion:   getEnvString("DG_STORAGE_REGION", ""),
		StorageEndpoint: getEnvString("DG_STORAGE_ENDPOINT", ""),
		StoragePrefix:   getEnvString("DG_STORAGE_PREFIX", ""),
		AccessKey:       getEnvString("DG_ACCESS_KEY", ""),
		SecretKey:       getEnvString("DG_SECRET_KEY", ""),

		// Data source defaults
		DataDir: getEnvString("DG_DATA_DIR", "./data"),

		// Backup defaults
		Entities:         getEnvList("DG_ENTITIES", []string{"users", "projects", "tasks"}),
		RetentionDays:    getEnvInt("DG_RETENTION_DAYS", 30),
		CompressionLevel: getEnvInt("DG_COMPRESS_LEVEL", 6),
		EncryptBackups:   getEnvBool("DG_ENCRYPT", false),
		EncryptionKey:    getEnvString("DG_ENCRYPTION_KEY", ""),
		SensitiveFields:  getEnvList("DG_SENSITIVE_FIELDS", []string{"email", "phone", "address"}),

		// Recovery objective defaults
		RPOTarget: getEnvDuration("DG_RPO_TARGET", time.Hour),
		RTOTarget: getEnvDuration("DG_RTO_TARGET", 4*time.Hour),

		// Failover defaults
		HealthCheckTimeout: getEnvDuration("DG_HEALTH_TIMEOUT", 5*time.Second),
		SecondarySite:      getEnvString("DG_SECONDARY_SITE", ""),

		// Output defaults
		Debug:     getEnvBool("DEBUG", false),
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "text"),
		AuditLog:  getEnvBool("DG_AUDIT_LOG", true),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.StorageProvider {
	case "s3", "aws", "minio", "local", "file", "memory":
	default:
		return &ConfigError{Field: "storage-provider", Value: c.StorageProvider,
			Message: "must be one of s3, minio, local, memory"}
	}

	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return &ConfigError{Field: "compression", Value: strconv.Itoa(c.CompressionLevel),
			Message: "must be between 0-9"}
	}

	if c.RetentionDays < 1 {
		return &ConfigError{Field: "retention-days", Value: strconv.Itoa(c.RetentionDays),
			Message: "must be at least 1"}
	}

	if c.EncryptBackups && c.EncryptionKey == "" {
		return &ConfigError{Field: "encryption-key", Value: "",
			Message: "required when encryption is enabled"}
	}

	if c.RPOTarget <= 0 {
		return &ConfigError{Field: "rpo-target", Value: c.RPOTarget.String(),
			Message: "must be positive"}
	}

	if c.HealthCheckTimeout <= 0 {
		return &ConfigError{Field: "health-timeout", Value: c.HealthCheckTimeout.String(),
			Message: "must be positive"}
	}

	return nil
}

// RetentionExpiry computes the retention expiry for a backup taken at ts
func (c *Config) RetentionExpiry(ts time.Time, overrideDays int) time.Time {
	days := c.RetentionDays
	if overrideDays > 0 {
		days = overrideDays
	}
	return ts.AddDate(0, 0, days)
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "' with value '" + e.Value + "': " + e.Message
}

// Helper functions
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDefaultBackupDir() string {
	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		return filepath.Join(homeDir, "dataguard_backups")
	}
	return "/tmp/dataguard_backups"
}

// String returns a redacted summary for logging
func (c *Config) String() string {
	return fmt.Sprintf("storage=%s bucket=%s retention=%dd rpo=%s rto=%s encrypt=%v",
		c.StorageProvider, c.StorageBucket, c.RetentionDays, c.RPOTarget, c.RTOTarget, c.EncryptBackups)
}
