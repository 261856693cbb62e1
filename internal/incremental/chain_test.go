package incremental

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/catalog"
	"dataguard/internal/logger"
)

func record(id string, backupType catalog.BackupType, base string, offset time.Duration) *catalog.BackupRecord {
	return &catalog.BackupRecord{
		ID:           id,
		Type:         backupType,
		BaseBackupID: base,
		Timestamp:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Add(offset),
	}
}

func TestValidateBackupChainValid(t *testing.T) {
	svc := NewService(logger.NewNullLogger())

	report := svc.ValidateBackupChain([]*catalog.BackupRecord{
		record("full_1", catalog.TypeFull, "", 0),
		record("inc_1", catalog.TypeIncremental, "full_1", time.Hour),
		record("inc_2", catalog.TypeIncremental, "inc_1", 2*time.Hour),
	})

	assert.True(t, report.IsValid)
	assert.Empty(t, report.BrokenChains)
	require.Len(t, report.ValidChains, 1)
	assert.Equal(t, []string{"full_1", "inc_1", "inc_2"}, report.ValidChains[0])
}

func TestValidateBackupChainMultipleChains(t *testing.T) {
	svc := NewService(logger.NewNullLogger())

	report := svc.ValidateBackupChain([]*catalog.BackupRecord{
		record("full_1", catalog.TypeFull, "", 0),
		record("inc_1", catalog.TypeIncremental, "full_1", time.Hour),
		record("full_2", catalog.TypeFull, "", 24*time.Hour),
		record("inc_2", catalog.TypeIncremental, "full_2", 25*time.Hour),
	})

	assert.True(t, report.IsValid)
	assert.Len(t, report.ValidChains, 2)
}

func TestValidateBackupChainMissingBase(t *testing.T) {
	svc := NewService(logger.NewNullLogger())

	report := svc.ValidateBackupChain([]*catalog.BackupRecord{
		record("full_1", catalog.TypeFull, "", 0),
		record("inc_orphan", catalog.TypeIncremental, "missing", time.Hour),
	})

	assert.False(t, report.IsValid)
	require.Len(t, report.BrokenChains, 1)
	assert.Equal(t, "inc_orphan", report.BrokenChains[0].BackupID)
	assert.Equal(t, "missing", report.BrokenChains[0].BaseBackupID)
	assert.Equal(t, IssueMissingBaseBackup, report.BrokenChains[0].Issue)
	assert.NotEmpty(t, report.Recommendation)
}

func TestValidateBackupChainEmptyCatalogue(t *testing.T) {
	svc := NewService(logger.NewNullLogger())
	report := svc.ValidateBackupChain(nil)

	assert.True(t, report.IsValid)
	assert.Empty(t, report.ValidChains)
}
