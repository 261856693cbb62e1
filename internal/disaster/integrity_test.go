package disaster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/checksum"
	"dataguard/internal/entity"
)

func mustChecksum(t *testing.T, record entity.Record) string {
	t.Helper()
	sum, err := checksum.Record(record)
	require.NoError(t, err)
	return sum
}

func TestValidateRecoveryIntegrityPerfectData(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	users := []entity.Record{
		{"id": "u1", "name": "Alice"},
		{"id": "u2", "name": "Bob"},
	}
	cert := svc.ValidateRecoveryIntegrity(RecoveryData{
		Records: map[entity.Type][]entity.Record{"users": users},
		ExpectedChecksums: map[entity.Type]map[string]string{
			"users": {
				"u1": mustChecksum(t, users[0]),
				"u2": mustChecksum(t, users[1]),
			},
		},
		ExpectedRecordCounts: map[entity.Type]int{"users": 2},
	})

	assert.InDelta(t, 1.0, cert.ChecksumScore, 1e-9)
	assert.InDelta(t, 1.0, cert.DataCompleteness, 1e-9)
	assert.InDelta(t, 1.0, cert.OverallIntegrity, 1e-9)
	assert.True(t, cert.CertificationValid)
	assert.Empty(t, cert.Recommendations)
	assert.Zero(t, cert.MissingRecords)
}

func TestValidateRecoveryIntegrityDetectsTampering(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	original := entity.Record{"id": "u1", "name": "Alice"}
	tampered := entity.Record{"id": "u1", "name": "Mallory"}

	cert := svc.ValidateRecoveryIntegrity(RecoveryData{
		Records: map[entity.Type][]entity.Record{"users": {tampered}},
		ExpectedChecksums: map[entity.Type]map[string]string{
			"users": {"u1": mustChecksum(t, original)},
		},
		ExpectedRecordCounts: map[entity.Type]int{"users": 1},
	})

	assert.Zero(t, cert.ChecksumScore)
	assert.False(t, cert.CertificationValid)
	require.Len(t, cert.MismatchedRecords, 1)
	assert.Contains(t, cert.MismatchedRecords[0], "u1")
	assert.NotEmpty(t, cert.Recommendations)
}

func TestValidateRecoveryIntegrityMissingRecords(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	present := entity.Record{"id": "u1", "name": "Alice"}
	absent := entity.Record{"id": "u2", "name": "Bob"}

	cert := svc.ValidateRecoveryIntegrity(RecoveryData{
		Records: map[entity.Type][]entity.Record{"users": {present}},
		ExpectedChecksums: map[entity.Type]map[string]string{
			"users": {
				"u1": mustChecksum(t, present),
				"u2": mustChecksum(t, absent),
			},
		},
		ExpectedRecordCounts: map[entity.Type]int{"users": 2},
	})

	assert.Equal(t, 1, cert.MissingRecords)
	assert.InDelta(t, 0.5, cert.ChecksumScore, 1e-9)
	assert.InDelta(t, 0.5, cert.DataCompleteness, 1e-9)
	assert.False(t, cert.CertificationValid)
}

func TestValidateRecoveryIntegrityEmptyExpectations(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	cert := svc.ValidateRecoveryIntegrity(RecoveryData{})

	assert.InDelta(t, 1.0, cert.ChecksumScore, 1e-9)
	assert.InDelta(t, 1.0, cert.DataCompleteness, 1e-9)
	assert.True(t, cert.CertificationValid)
}

func TestValidateRecoveryIntegrityExtraRecordsDoNotInflateCompleteness(t *testing.T) {
	svc := newDisasterService(t, &recordingDirector{})

	users := []entity.Record{
		{"id": "u1"}, {"id": "u2"}, {"id": "u3"},
	}
	cert := svc.ValidateRecoveryIntegrity(RecoveryData{
		Records:              map[entity.Type][]entity.Record{"users": users},
		ExpectedRecordCounts: map[entity.Type]int{"users": 2},
	})

	assert.InDelta(t, 1.0, cert.DataCompleteness, 1e-9)
}
