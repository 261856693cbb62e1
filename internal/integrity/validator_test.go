package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/entity"
	"dataguard/internal/logger"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	return NewValidator(logger.NewNullLogger())
}

func TestValidateFiles(t *testing.T) {
	v := newValidator(t)

	report := v.ValidateFiles([]FileCheck{
		{Name: "users.json", SizeBytes: 100, ExpectedChecksum: "abc", ActualChecksum: "abc"},
		{Name: "projects.json", SizeBytes: 100, ExpectedChecksum: "abc", ActualChecksum: "def"},
		{Name: "tasks.json", SizeBytes: 0, ExpectedChecksum: "abc", ActualChecksum: "abc"},
	})

	require.Len(t, report.Files, 3)
	assert.False(t, report.OverallValid)

	assert.True(t, report.Files[0].Valid)
	assert.False(t, report.Files[1].Valid)
	assert.Contains(t, report.Files[1].Issue, "checksum mismatch")
	assert.False(t, report.Files[2].Valid)
	assert.Contains(t, report.Files[2].Issue, "empty")
	assert.NotEmpty(t, report.Recommendations)
}

func TestValidateFilesAllValid(t *testing.T) {
	v := newValidator(t)

	report := v.ValidateFiles([]FileCheck{
		{Name: "users.json", SizeBytes: 42, ExpectedChecksum: "abc", ActualChecksum: "abc"},
	})

	assert.True(t, report.OverallValid)
	assert.Empty(t, report.Recommendations)
}

func TestPerformDeepValidationCleanData(t *testing.T) {
	v := newValidator(t)

	report := v.PerformDeepValidation(map[entity.Type][]entity.Record{
		"users": {
			{"id": "u1", "email": "alice@example.com"},
		},
		"projects": {
			{"id": "p1", "owner_id": "u1"},
		},
		"tasks": {
			{"id": "t1", "project_id": "p1", "assignee_id": "u1"},
		},
	})

	assert.Equal(t, 3, report.TotalRecords)
	assert.Empty(t, report.Violations)
	assert.InDelta(t, 1.0, report.DataQualityScore, 1e-9)
}

func TestPerformDeepValidationFindsViolations(t *testing.T) {
	v := newValidator(t)

	report := v.PerformDeepValidation(map[entity.Type][]entity.Record{
		"users": {
			{"id": "u1", "email": "not-an-email"},
			{"name": "no id at all"},
		},
		"projects": {
			{"id": "p1", "owner_id": "ghost"},
		},
	})

	require.Len(t, report.Violations, 3)

	issues := make(map[string]Violation)
	for _, violation := range report.Violations {
		issues[violation.Issue] = violation
	}
	assert.Contains(t, issues, "malformed email address")
	assert.Contains(t, issues, "record has no stable id")
	assert.Contains(t, issues, "reference owner_id=ghost does not resolve to any users record")

	// Every finding carries an actionable suggestion
	for _, violation := range report.Violations {
		assert.NotEmpty(t, violation.Suggestion)
	}
	assert.InDelta(t, 0.0, report.DataQualityScore, 1e-9)
}

func TestPerformDeepValidationAcceptsEncryptedEmail(t *testing.T) {
	v := newValidator(t)

	report := v.PerformDeepValidation(map[entity.Type][]entity.Record{
		"users": {
			{"id": "u1", "email": "enc:v1:c29tZWNpcGhlcnRleHQ="},
		},
	})

	assert.Empty(t, report.Violations)
}

func TestPerformDeepValidationEmptyState(t *testing.T) {
	v := newValidator(t)

	report := v.PerformDeepValidation(nil)
	assert.Zero(t, report.TotalRecords)
	assert.InDelta(t, 1.0, report.DataQualityScore, 1e-9)
}

func TestValidateBackupData(t *testing.T) {
	v := newValidator(t)

	report := v.ValidateBackupData(map[entity.Type][]entity.Record{
		"users": {
			{"id": "u1", "name": "Alice"},
		},
		"projects": {
			{"id": "p1", "owner_id": "u1"},
		},
	})

	assert.True(t, report.IsValid)
	assert.True(t, report.SchemaValid)
	assert.InDelta(t, 1.0, report.ReferentialIntegrityScore, 1e-9)
	assert.Empty(t, report.DuplicateRecords)
	assert.NotEmpty(t, report.Checksums["users"])
	assert.NotEmpty(t, report.Checksums["projects"])
}

func TestValidateBackupDataDetectsDuplicates(t *testing.T) {
	v := newValidator(t)

	report := v.ValidateBackupData(map[entity.Type][]entity.Record{
		"users": {
			{"id": "u1", "name": "Alice"},
			{"id": "u1", "name": "Alice again"},
		},
	})

	assert.Equal(t, []string{"users/u1"}, report.DuplicateRecords)
}

func TestValidateBackupDataReferentialThreshold(t *testing.T) {
	v := newValidator(t)

	// One of two references dangles: score 0.5 fails the gate
	report := v.ValidateBackupData(map[entity.Type][]entity.Record{
		"users": {
			{"id": "u1"},
		},
		"projects": {
			{"id": "p1", "owner_id": "u1"},
			{"id": "p2", "owner_id": "deleted_user"},
		},
	})

	assert.False(t, report.IsValid)
	assert.InDelta(t, 0.5, report.ReferentialIntegrityScore, 1e-9)
	require.Len(t, report.MissingReferences, 1)
	assert.Contains(t, report.MissingReferences[0], "deleted_user")
}

func TestValidateBackupDataMissingIDFailsSchema(t *testing.T) {
	v := newValidator(t)

	report := v.ValidateBackupData(map[entity.Type][]entity.Record{
		"users": {
			{"name": "anonymous"},
		},
	})

	assert.False(t, report.SchemaValid)
	assert.False(t, report.IsValid)
	assert.NotEmpty(t, report.SchemaIssues)
}

func TestValidateBackupDataReportsEncryptedFields(t *testing.T) {
	v := newValidator(t)

	report := v.ValidateBackupData(map[entity.Type][]entity.Record{
		"users": {
			{"id": "u1", "email": "enc:v1:Y2lwaGVydGV4dA=="},
		},
	})

	assert.Contains(t, report.EncryptedFields, "email")
}

func TestValidateBackupDataChecksumsAreStable(t *testing.T) {
	v := newValidator(t)

	data := map[entity.Type][]entity.Record{
		"users": {
			{"id": "u1", "name": "Alice"},
			{"id": "u2", "name": "Bob"},
		},
	}
	first := v.ValidateBackupData(data)
	second := v.ValidateBackupData(data)

	assert.Equal(t, first.Checksums["users"], second.Checksums["users"])
}
