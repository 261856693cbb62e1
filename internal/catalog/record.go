package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dataguard/internal/entity"
)

// BackupType represents the type of backup
type BackupType string

const (
	TypeFull         BackupType = "full"         // Complete snapshot of scoped entities
	TypeIncremental  BackupType = "incremental"  // Changes since a base backup
	TypeDifferential BackupType = "differential" // Changes since the last full backup
)

// Valid reports whether the backup type is one of the known types
func (t BackupType) Valid() bool {
	switch t {
	case TypeFull, TypeIncremental, TypeDifferential:
		return true
	}
	return false
}

// RequiresBase reports whether this backup type must chain to a base backup
func (t BackupType) RequiresBase() bool {
	return t == TypeIncremental || t == TypeDifferential
}

// BackupRecord contains the catalogued metadata of one backup.
// Records are immutable once created; retention cleanup is the only
// operation that removes them, and it audits every removal.
type BackupRecord struct {
	ID              string                 `json:"id"`
	Type            BackupType             `json:"type"`
	Timestamp       time.Time              `json:"timestamp"`
	BaseBackupID    string                 `json:"base_backup_id,omitempty"`
	Entities        []entity.Type          `json:"entities"`
	Checksums       map[entity.Type]string `json:"checksums"`
	Encrypted       bool                   `json:"encrypted"`
	Compressed      bool                   `json:"compressed"`
	Statistics      Statistics             `json:"statistics"`
	RetentionExpiry time.Time              `json:"retention_expiry"`
}

// Statistics holds per-backup size and record counts
type Statistics struct {
	RecordCounts   map[entity.Type]int `json:"record_counts"`
	TotalRecords   int                 `json:"total_records"`
	OriginalSize   int64               `json:"original_size_bytes"`
	CompressedSize int64               `json:"compressed_size_bytes"`
}

// Expired reports whether the backup's retention window has passed
func (r *BackupRecord) Expired(now time.Time) bool {
	return !r.RetentionExpiry.After(now)
}

// Validate checks the record's structural invariants
func (r *BackupRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("backup record has no id")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("backup %s: unknown type %q", r.ID, r.Type)
	}
	if r.Type.RequiresBase() && r.BaseBackupID == "" {
		return fmt.Errorf("backup %s: %s backup requires a base backup id", r.ID, r.Type)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("backup %s: timestamp is zero", r.ID)
	}
	return nil
}

// NewBackupID generates a globally unique backup id. The id embeds the type
// and timestamp for readability; the random suffix keeps concurrently
// scheduled backups from colliding.
func NewBackupID(t BackupType, ts time.Time) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s_%s_%s", t, ts.UTC().Format("20060102T150405"), suffix)
}

// ChangeType classifies a detected change
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// ChangeRecord is one detected change between two snapshots.
// Change records are immutable once emitted.
type ChangeRecord struct {
	EntityType       entity.Type   `json:"entity_type"`
	EntityID         string        `json:"entity_id"`
	ChangeType       ChangeType    `json:"change_type"`
	Timestamp        time.Time     `json:"timestamp"`
	PreviousChecksum string        `json:"previous_checksum,omitempty"`
	CurrentChecksum  string        `json:"current_checksum,omitempty"`
	Data             entity.Record `json:"data,omitempty"`
}

// Snapshot is a compact fingerprint of system state at a point in time,
// used as the baseline for change detection.
type Snapshot struct {
	Timestamp       time.Time         `json:"timestamp"`
	EntityChecksums map[string]string `json:"entity_checksums"`
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
