package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/audit"
	"dataguard/internal/catalog"
	"dataguard/internal/config"
	"dataguard/internal/entity"
	"dataguard/internal/incremental"
	"dataguard/internal/integrity"
	"dataguard/internal/logger"
	"dataguard/internal/source"
	"dataguard/internal/storage"
)

// fakeSource serves in-memory entity data and lets tests mutate it
// between backups
type fakeSource struct {
	data map[entity.Type][]entity.Record
}

func (s *fakeSource) ExtractEntityData(_ context.Context, scope source.Scope) (map[entity.Type][]entity.Record, error) {
	out := make(map[entity.Type][]entity.Record, len(scope.Entities))
	for _, entityType := range scope.Entities {
		out[entityType] = entity.CloneSet(s.data[entityType])
	}
	return out, nil
}

type testEnv struct {
	engine *Engine
	source *fakeSource
	store  *storage.MemoryBackend
	audit  *audit.Logger
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{
			StorageProvider:  "memory",
			RetentionDays:    30,
			CompressionLevel: 6,
			SensitiveFields:  []string{"email"},
		}
	}

	nullLog := logger.NewNullLogger()
	src := &fakeSource{data: map[entity.Type][]entity.Record{
		"users": {
			{"id": "u1", "name": "Alice", "email": "alice@example.com"},
			{"id": "u2", "name": "Bob", "email": "bob@example.com"},
		},
		"projects": {
			{"id": "p1", "name": "Apollo", "owner_id": "u1"},
		},
	}}
	store := storage.NewMemoryBackend()
	auditLog := audit.NewLogger(nullLog, false)

	engine := New(cfg, nullLog, src, store, catalog.New(),
		integrity.NewValidator(nullLog), incremental.NewService(nullLog), auditLog)

	return &testEnv{engine: engine, source: src, store: store, audit: auditLog}
}

func defaultScope() source.Scope {
	return source.Scope{Entities: []entity.Type{"users", "projects"}}
}

func TestPerformFullBackup(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	result := env.engine.PerformFullBackup(ctx, defaultScope())

	require.True(t, result.Success, result.Error)
	assert.NotEmpty(t, result.BackupID)
	assert.Equal(t, 3, result.Statistics.TotalRecords)
	assert.Equal(t, 2, result.Statistics.RecordCounts["users"])
	require.NotNil(t, result.Verification)
	assert.True(t, result.Verification.IsValid)

	// Backup is catalogued and its payload round-trips
	record, ok := env.engine.Catalog().Get(result.BackupID)
	require.True(t, ok)
	state, err := env.engine.LoadFullState(ctx, record)
	require.NoError(t, err)
	assert.Len(t, state["users"], 2)
	assert.Equal(t, "Apollo", state["projects"][0]["name"])
}

func TestPerformFullBackupInvalidScope(t *testing.T) {
	env := newTestEnv(t, nil)

	result := env.engine.PerformFullBackup(context.Background(), source.Scope{})

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Zero(t, result.Statistics.TotalRecords)
	assert.Zero(t, env.engine.Catalog().Len())
}

func TestPerformFullBackupDuplicateScopeEntity(t *testing.T) {
	env := newTestEnv(t, nil)

	result := env.engine.PerformFullBackup(context.Background(),
		source.Scope{Entities: []entity.Type{"users", "users"}})

	assert.False(t, result.Success)
}

func TestPerformFullBackupIntegrityGate(t *testing.T) {
	env := newTestEnv(t, nil)
	// Every project reference dangles, driving the referential score to 0
	env.source.data["projects"] = []entity.Record{
		{"id": "p1", "name": "Apollo", "owner_id": "ghost"},
	}
	env.source.data["users"] = nil

	result := env.engine.PerformFullBackup(context.Background(), defaultScope())

	assert.False(t, result.Success)
	require.NotNil(t, result.Verification)
	assert.False(t, result.Verification.IsValid)
	assert.Zero(t, env.engine.Catalog().Len())
}

func TestPerformIncrementalBackupWithoutBase(t *testing.T) {
	env := newTestEnv(t, nil)

	result := env.engine.PerformIncrementalBackup(context.Background(), defaultScope())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no full backup")
}

func TestPerformIncrementalBackup(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	full := env.engine.PerformFullBackup(ctx, defaultScope())
	require.True(t, full.Success, full.Error)

	// Mutate the source: one update, one create, one delete
	env.source.data["users"] = []entity.Record{
		{"id": "u1", "name": "Alicia", "email": "alice@example.com"},
		{"id": "u3", "name": "Carol", "email": "carol@example.com"},
	}

	result := env.engine.PerformIncrementalBackup(ctx, defaultScope())

	require.True(t, result.Success, result.Error)
	require.NotNil(t, result.ChangeLog)
	assert.Equal(t, 1, result.ChangeLog.Created)
	assert.Equal(t, 1, result.ChangeLog.Updated)
	assert.Equal(t, 1, result.ChangeLog.Deleted)
	assert.Equal(t, full.BackupID, result.Metadata.BaseBackupID)

	batch, err := env.engine.LoadChanges(ctx, result.Metadata)
	require.NoError(t, err)
	assert.Len(t, batch.Changes, 3)
}

func TestIncrementalChainsToTip(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	full := env.engine.PerformFullBackup(ctx, defaultScope())
	require.True(t, full.Success, full.Error)

	env.source.data["users"] = append(env.source.data["users"],
		entity.Record{"id": "u3", "name": "Carol", "email": "carol@example.com"})
	first := env.engine.PerformIncrementalBackup(ctx, defaultScope())
	require.True(t, first.Success, first.Error)

	env.source.data["users"] = append(env.source.data["users"],
		entity.Record{"id": "u4", "name": "Dave", "email": "dave@example.com"})
	second := env.engine.PerformIncrementalBackup(ctx, defaultScope())
	require.True(t, second.Success, second.Error)

	// The second incremental chains to the first, not back to the full
	assert.Equal(t, full.BackupID, first.Metadata.BaseBackupID)
	assert.Equal(t, first.BackupID, second.Metadata.BaseBackupID)

	// Only the delta since the tip is captured
	assert.Equal(t, 1, second.ChangeLog.Created)
	assert.Zero(t, second.ChangeLog.Updated)
}

func writeEntityFile(t *testing.T, dir string, entityType string, records []entity.Record) {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, entityType+".json"), data, 0644))
}

func TestIncrementalBackupStaleTimestampsNotDeleted(t *testing.T) {
	dir := t.TempDir()
	stale := time.Now().Add(-48 * time.Hour).Format(time.RFC3339)
	writeEntityFile(t, dir, "users", []entity.Record{
		{"id": "u1", "name": "Alice", "updated_at": stale},
		{"id": "u2", "name": "Bob", "updated_at": stale},
	})

	src, err := source.NewJSONDirSource(dir)
	require.NoError(t, err)

	cfg := &config.Config{
		StorageProvider:  "memory",
		RetentionDays:    30,
		CompressionLevel: 6,
	}
	nullLog := logger.NewNullLogger()
	engine := New(cfg, nullLog, src, storage.NewMemoryBackend(), catalog.New(),
		integrity.NewValidator(nullLog), incremental.NewService(nullLog),
		audit.NewLogger(nullLog, false))

	ctx := context.Background()
	scope := source.Scope{Entities: []entity.Type{"users"}}

	full := engine.PerformFullBackup(ctx, scope)
	require.True(t, full.Success, full.Error)

	// Nothing changed between the backups. Records untouched since before
	// the base backup are still part of current state and must not be
	// classified as deleted; replaying such a phantom deletion would drop
	// live records from a restored state.
	inc := engine.PerformIncrementalBackup(ctx, scope)
	require.True(t, inc.Success, inc.Error)
	require.NotNil(t, inc.ChangeLog)
	assert.Zero(t, inc.ChangeLog.Created)
	assert.Zero(t, inc.ChangeLog.Updated)
	assert.Zero(t, inc.ChangeLog.Deleted)
}

func TestFullBackupWithEncryption(t *testing.T) {
	cfg := &config.Config{
		StorageProvider:  "memory",
		RetentionDays:    30,
		CompressionLevel: 0,
		EncryptBackups:   true,
		EncryptionKey:    "test-passphrase",
		SensitiveFields:  []string{"email"},
	}
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	result := env.engine.PerformFullBackup(ctx, defaultScope())
	require.True(t, result.Success, result.Error)

	// Stored payload must not contain the plaintext email
	stored, err := env.store.Get(ctx, dataKey(result.BackupID, "users"))
	require.NoError(t, err)
	assert.NotContains(t, string(stored), "alice@example.com")

	// Loading decrypts transparently
	record, _ := env.engine.Catalog().Get(result.BackupID)
	state, err := env.engine.LoadFullState(ctx, record)
	require.NoError(t, err)
	users := entity.IndexByID(state["users"])
	assert.Equal(t, "alice@example.com", users["u1"]["email"])
}

func TestEncryptionKeyDerivationHonorsCallerContext(t *testing.T) {
	cfg := &config.Config{
		StorageProvider:  "memory",
		RetentionDays:    30,
		CompressionLevel: 0,
		EncryptBackups:   true,
		EncryptionKey:    "test-passphrase",
		SensitiveFields:  []string{"email"},
	}
	env := newTestEnv(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Key derivation reads and persists the salt through the storage
	// backend, so it must observe the caller's cancellation
	_, err := env.engine.maybeEncryptRecords(ctx, []entity.Record{
		{"id": "u1", "email": "alice@example.com"},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateBackupIntegrity(t *testing.T) {
	env := newTestEnv(t, nil)

	report := env.engine.ValidateBackupIntegrity(map[entity.Type][]entity.Record{
		"users": {{"id": "u1"}, {"id": "u1"}},
	})

	assert.Contains(t, report.DuplicateRecords, "users/u1")
}
