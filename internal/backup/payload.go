package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"dataguard/internal/catalog"
	"dataguard/internal/checksum"
	"dataguard/internal/crypto"
	"dataguard/internal/entity"
	"dataguard/internal/incremental"
)

// Storage key layout under one backup id
func dataKey(backupID string, entityType entity.Type) string {
	return fmt.Sprintf("backups/%s/data/%s.json", backupID, entityType)
}

func changesKey(backupID string, entityType entity.Type) string {
	return fmt.Sprintf("backups/%s/changes/%s.json", backupID, entityType)
}

func snapshotKey(backupID string) string {
	return fmt.Sprintf("backups/%s/snapshot.json", backupID)
}

func backupPrefix(backupID string) string {
	return fmt.Sprintf("backups/%s/", backupID)
}

const saltKey = "catalog/key.salt"

// storedInfo reports payload sizes before and after the pipeline
type storedInfo struct {
	originalSize int64
	storedSize   int64
}

// encryptionKey derives the AES key from the configured passphrase. The
// PBKDF2 salt persists alongside the catalogue so the same key derives
// across restarts.
func (e *Engine) encryptionKey(ctx context.Context) ([]byte, error) {
	if !e.cfg.EncryptBackups {
		return nil, nil
	}

	e.keyOnce.Do(func() {
		if e.cfg.EncryptionKey == "" {
			e.keyErr = fmt.Errorf("encryption enabled but no encryption key configured")
			return
		}

		exists, err := e.store.Exists(ctx, saltKey)
		if err != nil {
			e.keyErr = fmt.Errorf("failed to check key salt: %w", err)
			return
		}

		var salt []byte
		if exists {
			raw, err := e.store.Get(ctx, saltKey)
			if err != nil {
				e.keyErr = fmt.Errorf("failed to read key salt: %w", err)
				return
			}
			salt, err = hex.DecodeString(string(raw))
			if err != nil {
				e.keyErr = fmt.Errorf("corrupt key salt: %w", err)
				return
			}
		} else {
			salt, err = crypto.GenerateSalt()
			if err != nil {
				e.keyErr = err
				return
			}
			if err := e.store.Put(ctx, saltKey, []byte(hex.EncodeToString(salt))); err != nil {
				e.keyErr = fmt.Errorf("failed to persist key salt: %w", err)
				return
			}
		}

		e.key = crypto.DeriveKey([]byte(e.cfg.EncryptionKey), salt)
	})

	return e.key, e.keyErr
}

// maybeEncryptRecords returns the records with configured sensitive fields
// encrypted. The input records are never mutated.
func (e *Engine) maybeEncryptRecords(ctx context.Context, records []entity.Record) ([]entity.Record, error) {
	if !e.cfg.EncryptBackups {
		return records, nil
	}

	key, err := e.encryptionKey(ctx)
	if err != nil {
		return nil, err
	}

	out := entity.CloneSet(records)
	for _, record := range out {
		if err := e.encryptor.EncryptFields(record, e.cfg.SensitiveFields, key); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// persistEntityPayload runs one entity's records through the pipeline:
// encrypt sensitive fields, serialize, compress, checksum, persist.
// The catalogued checksum covers the stored bytes, so file verification
// works directly on storage objects.
func (e *Engine) persistEntityPayload(ctx context.Context, backupID string, entityType entity.Type,
	records []entity.Record, record *catalog.BackupRecord) (storedInfo, error) {

	prepared, err := e.maybeEncryptRecords(ctx, records)
	if err != nil {
		return storedInfo{}, err
	}

	plain, err := json.Marshal(prepared)
	if err != nil {
		return storedInfo{}, fmt.Errorf("failed to serialize %s: %w", entityType, err)
	}

	stored, err := e.compress(plain)
	if err != nil {
		return storedInfo{}, err
	}

	if err := e.store.Put(ctx, dataKey(backupID, entityType), stored); err != nil {
		return storedInfo{}, err
	}

	record.Checksums[entityType] = checksum.Bytes(stored)
	return storedInfo{originalSize: int64(len(plain)), storedSize: int64(len(stored))}, nil
}

// persistEntityChanges persists one entity's change set the same way
func (e *Engine) persistEntityChanges(ctx context.Context, backupID string, entityType entity.Type,
	changes []catalog.ChangeRecord, record *catalog.BackupRecord) (storedInfo, error) {

	prepared := changes
	if e.cfg.EncryptBackups {
		key, err := e.encryptionKey(ctx)
		if err != nil {
			return storedInfo{}, err
		}
		prepared = make([]catalog.ChangeRecord, len(changes))
		copy(prepared, changes)
		for i, change := range prepared {
			if change.Data == nil {
				continue
			}
			data := change.Data.Clone()
			if err := e.encryptor.EncryptFields(data, e.cfg.SensitiveFields, key); err != nil {
				return storedInfo{}, err
			}
			prepared[i].Data = data
		}
	}

	plain, err := json.Marshal(prepared)
	if err != nil {
		return storedInfo{}, fmt.Errorf("failed to serialize changes for %s: %w", entityType, err)
	}

	stored, err := e.compress(plain)
	if err != nil {
		return storedInfo{}, err
	}

	if err := e.store.Put(ctx, changesKey(backupID, entityType), stored); err != nil {
		return storedInfo{}, err
	}

	record.Checksums[entityType] = checksum.Bytes(stored)
	return storedInfo{originalSize: int64(len(plain)), storedSize: int64(len(stored))}, nil
}

// persistSnapshots stores the backup's state fingerprint. Snapshots hold
// only checksums, so they bypass the encryption/compression pipeline.
func (e *Engine) persistSnapshots(ctx context.Context, backupID string, snapshots *catalog.SnapshotSet) error {
	data, err := json.Marshal(snapshots)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return e.store.Put(ctx, snapshotKey(backupID), data)
}

// LoadSnapshots reads the state fingerprint persisted with a backup
func (e *Engine) LoadSnapshots(ctx context.Context, record *catalog.BackupRecord) (*catalog.SnapshotSet, error) {
	data, err := e.store.Get(ctx, snapshotKey(record.ID))
	if err != nil {
		return nil, err
	}

	var snapshots catalog.SnapshotSet
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot for %s: %w", record.ID, err)
	}
	return &snapshots, nil
}

// LoadFullState reads and decodes the entity payloads of a full backup,
// verifying each stored object against its catalogued checksum
func (e *Engine) LoadFullState(ctx context.Context, record *catalog.BackupRecord) (map[entity.Type][]entity.Record, error) {
	if record.Type != catalog.TypeFull {
		return nil, fmt.Errorf("backup %s is not a full backup", record.ID)
	}

	out := make(map[entity.Type][]entity.Record, len(record.Entities))
	for _, entityType := range record.Entities {
		stored, err := e.store.Get(ctx, dataKey(record.ID, entityType))
		if err != nil {
			return nil, err
		}

		if expected := record.Checksums[entityType]; expected != "" {
			if err := checksum.Verify(stored, expected); err != nil {
				return nil, fmt.Errorf("backup %s entity %s: %w", record.ID, entityType, err)
			}
		}

		plain, err := e.decompress(stored, record.Compressed)
		if err != nil {
			return nil, fmt.Errorf("backup %s entity %s: %w", record.ID, entityType, err)
		}

		var records []entity.Record
		if err := json.Unmarshal(plain, &records); err != nil {
			return nil, fmt.Errorf("backup %s entity %s: %w", record.ID, entityType, err)
		}

		if record.Encrypted {
			key, err := e.encryptionKey(ctx)
			if err != nil {
				return nil, err
			}
			for _, rec := range records {
				if err := e.encryptor.DecryptFields(rec, key); err != nil {
					return nil, fmt.Errorf("backup %s entity %s: %w", record.ID, entityType, err)
				}
			}
		}

		out[entityType] = records
	}

	return out, nil
}

// LoadChanges reads the ordered change batch of an incremental backup
func (e *Engine) LoadChanges(ctx context.Context, record *catalog.BackupRecord) (incremental.ChangeBatch, error) {
	batch := incremental.ChangeBatch{
		BackupID:  record.ID,
		Timestamp: record.Timestamp,
	}

	if !record.Type.RequiresBase() {
		return batch, fmt.Errorf("backup %s is not a chained backup", record.ID)
	}

	for _, entityType := range record.Entities {
		key := changesKey(record.ID, entityType)
		exists, err := e.store.Exists(ctx, key)
		if err != nil {
			return batch, err
		}
		if !exists {
			// Entity was in scope but had no changes
			continue
		}

		stored, err := e.store.Get(ctx, key)
		if err != nil {
			return batch, err
		}

		if expected := record.Checksums[entityType]; expected != "" {
			if err := checksum.Verify(stored, expected); err != nil {
				return batch, fmt.Errorf("backup %s entity %s: %w", record.ID, entityType, err)
			}
		}

		plain, err := e.decompress(stored, record.Compressed)
		if err != nil {
			return batch, fmt.Errorf("backup %s entity %s: %w", record.ID, entityType, err)
		}

		var changes []catalog.ChangeRecord
		if err := json.Unmarshal(plain, &changes); err != nil {
			return batch, fmt.Errorf("backup %s entity %s: %w", record.ID, entityType, err)
		}

		if record.Encrypted {
			key, err := e.encryptionKey(ctx)
			if err != nil {
				return batch, err
			}
			for _, change := range changes {
				if change.Data == nil {
					continue
				}
				if err := e.encryptor.DecryptFields(change.Data, key); err != nil {
					return batch, fmt.Errorf("backup %s entity %s: %w", record.ID, entityType, err)
				}
			}
		}

		batch.Changes = append(batch.Changes, changes...)
	}

	return batch, nil
}

// compress gzips a payload at the configured level; level 0 stores raw
func (e *Engine) compress(data []byte) ([]byte, error) {
	if e.cfg.CompressionLevel <= 0 {
		return data, nil
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, e.cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Engine) decompress(data []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return data, nil
	}

	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip payload: %w", err)
	}
	defer r.Close()

	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	return plain, nil
}

// snapshotOf fingerprints a record set by id
func snapshotOf(records []entity.Record) (map[string]string, error) {
	return checksum.RecordSet(records)
}
