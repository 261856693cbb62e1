package backup

import (
	"context"
	"fmt"
	"time"

	"dataguard/internal/catalog"
)

// CleanupResult is the outcome of one retention sweep
type CleanupResult struct {
	Success          bool          `json:"success"`
	DeletedBackups   int           `json:"deleted_backups"`
	RetainedBackups  int           `json:"retained_backups"`
	StorageReclaimed int64         `json:"storage_reclaimed"`
	DeletedIDs       []string      `json:"deleted_ids,omitempty"`
	Errors           []string      `json:"errors,omitempty"`
	DryRun           bool          `json:"dry_run"`
	Duration         time.Duration `json:"duration"`
}

// CleanupExpiredBackups sweeps the catalogue and deletes every backup whose
// retention expiry has passed. Non-expired backups are never touched. Each
// backup produces exactly one audit entry, deleted or retained, with the
// reason. With dryRun set the sweep reports what it would delete without
// removing anything.
func (e *Engine) CleanupExpiredBackups(ctx context.Context, dryRun bool) *CleanupResult {
	start := time.Now()
	now := start
	op := e.log.StartOperation("Retention Cleanup")

	result := &CleanupResult{Success: true, DryRun: dryRun}

	for _, record := range e.catalog.List() {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("cleanup cancelled: %v", err))
			break
		}

		if !record.Expired(now) {
			result.RetainedBackups++
			e.audit.BackupRetained(record.ID,
				fmt.Sprintf("retention expires %s", record.RetentionExpiry.Format(time.RFC3339)))
			continue
		}

		reason := fmt.Sprintf("retention expired %s", record.RetentionExpiry.Format(time.RFC3339))

		if dryRun {
			result.DeletedBackups++
			result.StorageReclaimed += record.Statistics.CompressedSize
			result.DeletedIDs = append(result.DeletedIDs, record.ID)
			e.audit.BackupDeleted(record.ID, reason+" (dry run)", record.Statistics.CompressedSize)
			continue
		}

		if err := e.deleteBackupObjects(ctx, record); err != nil {
			result.Success = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("failed to delete %s: %v", record.ID, err))
			op.Update("Delete failed", "backup_id", record.ID, "error", err.Error())
			continue
		}

		e.catalog.Remove(record.ID)
		result.DeletedBackups++
		result.StorageReclaimed += record.Statistics.CompressedSize
		result.DeletedIDs = append(result.DeletedIDs, record.ID)
		e.audit.BackupDeleted(record.ID, reason, record.Statistics.CompressedSize)
		op.Update("Backup deleted", "backup_id", record.ID,
			"reclaimed", catalog.FormatSize(record.Statistics.CompressedSize))
	}

	if !dryRun && result.DeletedBackups > 0 {
		if err := e.catalog.Save(ctx, e.store); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("failed to save catalogue: %v", err))
		}
	}

	result.Duration = time.Since(start)
	if result.Success {
		op.Complete("Cleanup finished",
			"deleted", result.DeletedBackups,
			"retained", result.RetainedBackups,
			"reclaimed", catalog.FormatSize(result.StorageReclaimed))
	} else {
		op.Fail("Cleanup finished with errors", "errors", len(result.Errors))
	}

	return result
}

// deleteBackupObjects removes every storage object persisted under one
// backup id
func (e *Engine) deleteBackupObjects(ctx context.Context, record *catalog.BackupRecord) error {
	objects, err := e.store.List(ctx, backupPrefix(record.ID))
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := e.store.Delete(ctx, obj.Key); err != nil {
			return err
		}
	}
	return nil
}
