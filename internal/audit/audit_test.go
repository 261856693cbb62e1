package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/logger"
)

func TestRecordKeepsTrailWhenDisabled(t *testing.T) {
	a := NewLogger(logger.NewNullLogger(), false)

	a.BackupStarted("full", 3)
	a.BackupFailed("full", errors.New("source unreachable"))

	entries := a.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "BACKUP_START", entries[0].Action)
	assert.Equal(t, "INITIATED", entries[0].Result)
	assert.Equal(t, "BACKUP_FAILED", entries[1].Action)
	assert.Equal(t, "source unreachable", entries[1].Reason)
	assert.NotZero(t, entries[0].Timestamp)
	assert.NotEmpty(t, entries[0].User)
}

func TestRetentionDecisionsAreAudited(t *testing.T) {
	a := NewLogger(logger.NewNullLogger(), true)

	a.BackupDeleted("full_old", "retention expired", 2048)
	a.BackupRetained("full_new", "within retention window")

	entries := a.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "BACKUP_DELETED", entries[0].Action)
	assert.Equal(t, "full_old", entries[0].Resource)
	assert.Equal(t, int64(2048), entries[0].Details["size_bytes"])
	assert.Equal(t, "BACKUP_RETAINED", entries[1].Action)
}

func TestFailoverAudit(t *testing.T) {
	a := NewLogger(logger.NewNullLogger(), true)

	a.FailoverRefused("primary healthy")
	a.FailoverExecuted("secondary", "primary down")

	entries := a.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "FAILOVER_REFUSED", entries[0].Action)
	assert.Equal(t, "REFUSED", entries[0].Result)
	assert.Equal(t, "FAILOVER_EXECUTED", entries[1].Action)
	assert.Equal(t, "secondary", entries[1].Resource)
}

func TestEntriesReturnsCopy(t *testing.T) {
	a := NewLogger(logger.NewNullLogger(), false)
	a.BackupCompleted("full_1", 100)

	entries := a.Entries()
	entries[0].Action = "MUTATED"

	assert.Equal(t, "BACKUP_COMPLETE", a.Entries()[0].Action)
}
