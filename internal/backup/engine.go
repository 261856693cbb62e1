package backup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dataguard/internal/audit"
	"dataguard/internal/catalog"
	"dataguard/internal/config"
	"dataguard/internal/crypto"
	"dataguard/internal/entity"
	"dataguard/internal/incremental"
	"dataguard/internal/integrity"
	"dataguard/internal/logger"
	"dataguard/internal/metrics"
	"dataguard/internal/source"
	"dataguard/internal/storage"
)

// Engine orchestrates full and incremental backup creation: extract,
// validate, encrypt, compress, checksum, persist. Operational failures
// never surface as errors; every operation returns a Result so a
// scheduling loop can log and continue.
type Engine struct {
	cfg       *config.Config
	log       logger.Logger
	source    source.DataSource
	store     storage.Backend
	catalog   *catalog.Catalog
	validator *integrity.Validator
	inc       *incremental.Service
	audit     *audit.Logger
	encryptor *crypto.AESEncryptor

	keyOnce sync.Once
	key     []byte
	keyErr  error
}

// New creates a new backup engine
func New(cfg *config.Config, log logger.Logger, src source.DataSource, store storage.Backend,
	cat *catalog.Catalog, validator *integrity.Validator, inc *incremental.Service,
	auditLog *audit.Logger) *Engine {

	return &Engine{
		cfg:       cfg,
		log:       log,
		source:    src,
		store:     store,
		catalog:   cat,
		validator: validator,
		inc:       inc,
		audit:     auditLog,
		encryptor: crypto.NewAESEncryptor(),
	}
}

// Catalog exposes the engine's backup catalogue
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// StoreName names the storage backend the engine persists to
func (e *Engine) StoreName() string {
	return e.store.Name()
}

// ChangeLog summarizes the changes captured by an incremental backup
type ChangeLog struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Result is the outcome of a backup operation. Success=false carries the
// failure reason and zeroed statistics.
type Result struct {
	Success      bool                       `json:"success"`
	BackupID     string                     `json:"backup_id,omitempty"`
	Error        string                     `json:"error,omitempty"`
	Metadata     *catalog.BackupRecord      `json:"metadata,omitempty"`
	Statistics   catalog.Statistics         `json:"statistics"`
	Verification *integrity.IntegrityReport `json:"verification,omitempty"`
	ChangeLog    *ChangeLog                 `json:"change_log,omitempty"`
	Duration     time.Duration              `json:"duration"`
}

func failure(start time.Time, format string, args ...interface{}) *Result {
	return &Result{
		Success:  false,
		Error:    fmt.Sprintf(format, args...),
		Duration: time.Since(start),
	}
}

// validateScope rejects malformed scopes before any I/O happens
func validateScope(scope source.Scope) error {
	if len(scope.Entities) == 0 {
		return fmt.Errorf("scope names no entity types")
	}
	seen := make(map[entity.Type]bool, len(scope.Entities))
	for _, entityType := range scope.Entities {
		if entityType == "" {
			return fmt.Errorf("scope contains an empty entity type")
		}
		if seen[entityType] {
			return fmt.Errorf("scope lists entity type %s twice", entityType)
		}
		seen[entityType] = true
	}
	return nil
}

// PerformFullBackup extracts data for the scoped entities, validates it,
// optionally encrypts sensitive fields, compresses, checksums, and
// persists a complete snapshot of system state.
func (e *Engine) PerformFullBackup(ctx context.Context, scope source.Scope) *Result {
	start := time.Now()
	op := e.log.StartOperation("Full Backup")

	if err := validateScope(scope); err != nil {
		op.Fail("Invalid scope")
		e.audit.BackupFailed(string(catalog.TypeFull), err)
		return failure(start, "invalid scope: %v", err)
	}

	e.audit.BackupStarted(string(catalog.TypeFull), len(scope.Entities))

	data, err := e.extract(ctx, scope)
	if err != nil {
		op.Fail("Extraction failed")
		e.audit.BackupFailed(string(catalog.TypeFull), err)
		e.recordMetrics(catalog.TypeFull, start, 0, false)
		return failure(start, "extraction failed: %v", err)
	}
	op.Update("Extraction complete", "entities", len(data))

	// Pre-store integrity gate
	verification := e.validator.ValidateBackupData(data)
	if !verification.IsValid {
		op.Fail("Integrity gate rejected backup data")
		err := fmt.Errorf("integrity gate failed: schema_valid=%v referential_score=%.3f",
			verification.SchemaValid, verification.ReferentialIntegrityScore)
		e.audit.BackupFailed(string(catalog.TypeFull), err)
		e.recordMetrics(catalog.TypeFull, start, 0, false)
		result := failure(start, "%v", err)
		result.Verification = verification
		return result
	}

	backupID := catalog.NewBackupID(catalog.TypeFull, start)
	record := &catalog.BackupRecord{
		ID:              backupID,
		Type:            catalog.TypeFull,
		Timestamp:       start,
		Encrypted:       e.cfg.EncryptBackups,
		Compressed:      e.cfg.CompressionLevel > 0,
		RetentionExpiry: e.cfg.RetentionExpiry(start, scope.RetentionDays),
		Checksums:       make(map[entity.Type]string),
		Statistics: catalog.Statistics{
			RecordCounts: make(map[entity.Type]int),
		},
	}

	snapshots := catalog.NewSnapshotSet(start)

	// Persist entity payloads one batch at a time; the gap between batches
	// is the cooperative cancellation point. Payloads already persisted
	// stay valid on their own.
	for _, entityType := range sortedTypes(data) {
		if err := ctx.Err(); err != nil {
			op.Fail("Backup cancelled")
			e.audit.BackupFailed(string(catalog.TypeFull), err)
			e.recordMetrics(catalog.TypeFull, start, 0, false)
			return failure(start, "backup cancelled: %v", err)
		}

		records := data[entityType]
		stored, err := e.persistEntityPayload(ctx, backupID, entityType, records, record)
		if err != nil {
			op.Fail("Persist failed", "entity", string(entityType))
			e.audit.BackupFailed(string(catalog.TypeFull), err)
			e.recordMetrics(catalog.TypeFull, start, 0, false)
			return failure(start, "failed to persist %s: %v", entityType, err)
		}

		sums, err := e.snapshotChecksums(records)
		if err != nil {
			op.Fail("Snapshot failed", "entity", string(entityType))
			e.audit.BackupFailed(string(catalog.TypeFull), err)
			return failure(start, "failed to snapshot %s: %v", entityType, err)
		}
		snapshots.Set(entityType, sums)

		record.Entities = append(record.Entities, entityType)
		record.Statistics.RecordCounts[entityType] = len(records)
		record.Statistics.TotalRecords += len(records)
		record.Statistics.OriginalSize += stored.originalSize
		record.Statistics.CompressedSize += stored.storedSize
		op.Update("Entity persisted", "entity", string(entityType), "records", len(records))
	}

	if err := e.finalizeBackup(ctx, record, snapshots); err != nil {
		op.Fail("Failed to catalogue backup")
		e.audit.BackupFailed(string(catalog.TypeFull), err)
		e.recordMetrics(catalog.TypeFull, start, 0, false)
		return failure(start, "failed to catalogue backup: %v", err)
	}

	e.audit.BackupCompleted(backupID, record.Statistics.CompressedSize)
	e.recordMetrics(catalog.TypeFull, start, record.Statistics.CompressedSize, true)
	op.Complete("Full backup persisted",
		"backup_id", backupID,
		"records", record.Statistics.TotalRecords,
		"size", catalog.FormatSize(record.Statistics.CompressedSize))

	return &Result{
		Success:      true,
		BackupID:     backupID,
		Metadata:     record,
		Statistics:   record.Statistics,
		Verification: verification,
		Duration:     time.Since(start),
	}
}

// PerformIncrementalBackup captures only the changes since the current
// chain tip. The new backup chains to the tip of the most recent full
// backup's chain, keeping lineage contiguous for point-in-time recovery.
func (e *Engine) PerformIncrementalBackup(ctx context.Context, scope source.Scope) *Result {
	start := time.Now()
	op := e.log.StartOperation("Incremental Backup")

	if err := validateScope(scope); err != nil {
		op.Fail("Invalid scope")
		e.audit.BackupFailed(string(catalog.TypeIncremental), err)
		return failure(start, "invalid scope: %v", err)
	}

	base := e.chainTip()
	if base == nil {
		op.Fail("No base backup")
		err := fmt.Errorf("no full backup exists to chain against")
		e.audit.BackupFailed(string(catalog.TypeIncremental), err)
		return failure(start, "%v", err)
	}

	e.audit.BackupStarted(string(catalog.TypeIncremental), len(scope.Entities))

	data, err := e.extract(ctx, scope)
	if err != nil {
		op.Fail("Extraction failed")
		e.audit.BackupFailed(string(catalog.TypeIncremental), err)
		e.recordMetrics(catalog.TypeIncremental, start, 0, false)
		return failure(start, "extraction failed: %v", err)
	}

	baseSnapshots, err := e.LoadSnapshots(ctx, base)
	if err != nil {
		op.Fail("Base snapshot unavailable")
		e.audit.BackupFailed(string(catalog.TypeIncremental), err)
		e.recordMetrics(catalog.TypeIncremental, start, 0, false)
		return failure(start, "failed to load base snapshot: %v", err)
	}

	backupID := catalog.NewBackupID(catalog.TypeIncremental, start)
	record := &catalog.BackupRecord{
		ID:              backupID,
		Type:            catalog.TypeIncremental,
		Timestamp:       start,
		BaseBackupID:    base.ID,
		Encrypted:       e.cfg.EncryptBackups,
		Compressed:      e.cfg.CompressionLevel > 0,
		RetentionExpiry: e.cfg.RetentionExpiry(start, scope.RetentionDays),
		Checksums:       make(map[entity.Type]string),
		Statistics: catalog.Statistics{
			RecordCounts: make(map[entity.Type]int),
		},
	}

	changeLog := &ChangeLog{}
	snapshots := catalog.NewSnapshotSet(start)
	allChanges := make([]catalog.ChangeRecord, 0)

	for _, entityType := range sortedTypes(data) {
		if err := ctx.Err(); err != nil {
			op.Fail("Backup cancelled")
			e.audit.BackupFailed(string(catalog.TypeIncremental), err)
			e.recordMetrics(catalog.TypeIncremental, start, 0, false)
			return failure(start, "backup cancelled: %v", err)
		}

		records := data[entityType]
		if err := entity.ValidateRecords(entityType, records); err != nil {
			op.Fail("Malformed records", "entity", string(entityType))
			e.audit.BackupFailed(string(catalog.TypeIncremental), err)
			return failure(start, "%v", err)
		}

		set, err := e.inc.IdentifyChanges(baseSnapshots.For(entityType), entityType, records)
		if err != nil {
			op.Fail("Change detection failed", "entity", string(entityType))
			e.audit.BackupFailed(string(catalog.TypeIncremental), err)
			return failure(start, "change detection failed for %s: %v", entityType, err)
		}

		changeLog.Created += set.Created
		changeLog.Updated += set.Updated
		changeLog.Deleted += set.Deleted
		allChanges = append(allChanges, set.Changes...)

		// The new snapshot reflects post-change state: base ids plus the
		// detected creations/updates/deletions
		sums := cloneSums(baseSnapshots.For(entityType).EntityChecksums)
		for _, change := range set.Changes {
			switch change.ChangeType {
			case catalog.ChangeDeleted:
				delete(sums, change.EntityID)
			default:
				sums[change.EntityID] = change.CurrentChecksum
			}
		}
		snapshots.Set(entityType, sums)

		if len(set.Changes) > 0 {
			stored, err := e.persistEntityChanges(ctx, backupID, entityType, set.Changes, record)
			if err != nil {
				op.Fail("Persist failed", "entity", string(entityType))
				e.audit.BackupFailed(string(catalog.TypeIncremental), err)
				e.recordMetrics(catalog.TypeIncremental, start, 0, false)
				return failure(start, "failed to persist changes for %s: %v", entityType, err)
			}
			record.Statistics.OriginalSize += stored.originalSize
			record.Statistics.CompressedSize += stored.storedSize
		}

		record.Entities = append(record.Entities, entityType)
		record.Statistics.RecordCounts[entityType] = len(set.Changes)
		record.Statistics.TotalRecords += len(set.Changes)
	}

	if err := e.finalizeBackup(ctx, record, snapshots); err != nil {
		op.Fail("Failed to catalogue backup")
		e.audit.BackupFailed(string(catalog.TypeIncremental), err)
		e.recordMetrics(catalog.TypeIncremental, start, 0, false)
		return failure(start, "failed to catalogue backup: %v", err)
	}

	e.audit.BackupCompleted(backupID, record.Statistics.CompressedSize)
	e.recordMetrics(catalog.TypeIncremental, start, record.Statistics.CompressedSize, true)
	op.Complete("Incremental backup persisted",
		"backup_id", backupID,
		"base", base.ID,
		"changes", len(allChanges))

	return &Result{
		Success:    true,
		BackupID:   backupID,
		Metadata:   record,
		Statistics: record.Statistics,
		ChangeLog:  changeLog,
		Duration:   time.Since(start),
	}
}

// ValidateBackupIntegrity runs the pre-store integrity gate over a backup
// payload without persisting anything
func (e *Engine) ValidateBackupIntegrity(data map[entity.Type][]entity.Record) *integrity.IntegrityReport {
	return e.validator.ValidateBackupData(data)
}

// extract pulls entity data from the data source, one entity type per
// goroutine. Extraction across independent entity types is parallel;
// structural validation happens before the data is accepted.
func (e *Engine) extract(ctx context.Context, scope source.Scope) (map[entity.Type][]entity.Record, error) {
	var mu sync.Mutex
	out := make(map[entity.Type][]entity.Record, len(scope.Entities))

	g, gctx := errgroup.WithContext(ctx)
	for _, entityType := range scope.Entities {
		entityType := entityType
		g.Go(func() error {
			single := source.Scope{Entities: []entity.Type{entityType}}
			data, err := e.source.ExtractEntityData(gctx, single)
			if err != nil {
				return fmt.Errorf("extract %s: %w", entityType, err)
			}
			records := data[entityType]
			if err := entity.ValidateRecords(entityType, records); err != nil {
				return err
			}
			mu.Lock()
			out[entityType] = records
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// chainTip returns the backup an incremental should chain to: the tip of
// the chain rooted at the most recent full backup
func (e *Engine) chainTip() *catalog.BackupRecord {
	full := e.catalog.LatestFull()
	if full == nil {
		return nil
	}
	tip := full
	for _, r := range e.catalog.List() {
		if r.Type.RequiresBase() && r.BaseBackupID == tip.ID {
			tip = r
		}
	}
	return tip
}

// snapshotChecksums fingerprints a record set for later change detection.
// Fingerprints cover plaintext records; encrypted payloads are
// nonce-randomized and would never diff stable.
func (e *Engine) snapshotChecksums(records []entity.Record) (map[string]string, error) {
	return snapshotOf(records)
}

func (e *Engine) finalizeBackup(ctx context.Context, record *catalog.BackupRecord, snapshots *catalog.SnapshotSet) error {
	if err := e.persistSnapshots(ctx, record.ID, snapshots); err != nil {
		return err
	}
	if err := e.catalog.Append(record); err != nil {
		return err
	}
	return e.catalog.Save(ctx, e.store)
}

func (e *Engine) recordMetrics(backupType catalog.BackupType, start time.Time, size int64, success bool) {
	if metrics.GlobalMetrics != nil {
		metrics.GlobalMetrics.RecordBackup(string(backupType), e.store.Name(), start, size, success)
	}
}

func sortedTypes(data map[entity.Type][]entity.Record) []entity.Type {
	types := make([]entity.Type, 0, len(data))
	for t := range data {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func cloneSums(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
