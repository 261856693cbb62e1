package pitr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/entity"
	"dataguard/internal/source"
)

func TestExecutePartialRecovery(t *testing.T) {
	env := newRecoveryEnv(t)
	ctx := context.Background()

	env.source.data = map[entity.Type][]entity.Record{
		"users": {
			{"id": "u1", "name": "Alice"},
		},
		"projects": {
			{"id": "p1", "name": "Apollo", "owner_id": "u1"},
			{"id": "p2", "name": "Borealis", "owner_id": "u1"},
		},
		"tasks": {
			{"id": "t1", "project_id": "p1", "assignee_id": "u1"},
			{"id": "t2", "project_id": "p2", "assignee_id": "u1"},
		},
	}
	full := env.engine.PerformFullBackup(ctx, source.Scope{
		Entities: []entity.Type{"users", "projects", "tasks"},
	})
	require.True(t, full.Success, full.Error)

	result := env.svc.ExecutePartialRecovery(ctx, PartialRecoveryRequest{
		TargetTime: time.Now().Add(time.Minute),
		Entities:   []entity.Type{"projects", "tasks"},
		ProjectIDs: []string{"p1"},
	})

	require.True(t, result.Success, result.Error)
	assert.Len(t, result.RestoredState["projects"], 1)
	assert.Len(t, result.RestoredState["tasks"], 1)
	assert.NotContains(t, result.RestoredState, entity.Type("users"))

	// The incompleteness warning is always present
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "incomplete")

	// Restored records reference users outside the restored scope
	assert.NotEmpty(t, result.Orphans)
}

func TestExecutePartialRecoveryEmptyScope(t *testing.T) {
	env := newRecoveryEnv(t)

	result := env.svc.ExecutePartialRecovery(context.Background(), PartialRecoveryRequest{
		TargetTime: time.Now(),
	})

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Warnings)
}
