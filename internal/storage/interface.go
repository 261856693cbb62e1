package storage

import (
	"context"
	"fmt"
	"time"
)

// Backend defines the interface for backup storage providers.
// Put must provide at-least-once durability: once it returns nil, the
// object survives process restart.
type Backend interface {
	// Put stores an object under the given key
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves an object by key
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes an object by key
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// List lists objects under a key prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Name returns the backend name (e.g., "s3", "local", "memory")
	Name() string
}

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Key          string    // Full key in storage
	Size         int64     // Size in bytes
	LastModified time.Time // Last modification time
}

// Config contains common configuration for storage backends
type Config struct {
	Provider   string // "s3", "minio", "local", "memory"
	Bucket     string // Bucket name (S3) or base directory (local)
	Region     string // Region (for S3)
	Endpoint   string // Custom endpoint (for MinIO, S3-compatible)
	AccessKey  string // Access key
	SecretKey  string // Secret key
	PathStyle  bool   // Use path-style addressing (for MinIO)
	Prefix     string // Prefix for all operations (e.g., "backups/")
	MaxRetries int    // Maximum retry attempts (default: 3)
}

// NewBackend creates a storage backend based on the provider
func NewBackend(cfg *Config) (Backend, error) {
	switch cfg.Provider {
	case "s3", "aws":
		return NewS3Backend(cfg)
	case "minio":
		// MinIO uses the S3 backend with a custom endpoint
		cfg.PathStyle = true
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("endpoint required for MinIO")
		}
		return NewS3Backend(cfg)
	case "local", "file":
		return NewLocalBackend(cfg.Bucket, cfg.Prefix)
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s (supported: s3, minio, local, memory)", cfg.Provider)
	}
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Provider:   "local",
		MaxRetries: 3,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.Provider == "memory" {
		return nil
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket or base directory is required")
	}
	if c.Provider == "s3" || c.Provider == "aws" {
		if c.Region == "" && c.Endpoint == "" {
			return fmt.Errorf("region or endpoint is required for S3")
		}
	}
	if c.Provider == "minio" && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required for minio")
	}
	return nil
}

// FormatSize returns human-readable size
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
