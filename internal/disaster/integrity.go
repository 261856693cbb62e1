package disaster

import (
	"fmt"

	"dataguard/internal/checksum"
	"dataguard/internal/entity"
)

// RecoveryData is the recovered state to certify, together with what the
// catalogue says it should contain
type RecoveryData struct {
	Records              map[entity.Type][]entity.Record   `json:"records"`
	ExpectedChecksums    map[entity.Type]map[string]string `json:"expected_checksums"`
	ExpectedRecordCounts map[entity.Type]int               `json:"expected_record_counts"`
}

// IntegrityCertification blends three independent signals into one
// recovered-data verdict
type IntegrityCertification struct {
	ChecksumScore      float64  `json:"checksum_score"`
	ReferentialScore   float64  `json:"referential_score"`
	DataCompleteness   float64  `json:"data_completeness"`
	OverallIntegrity   float64  `json:"overall_integrity"`
	MismatchedRecords  []string `json:"mismatched_records,omitempty"`
	MissingRecords     int      `json:"missing_records"`
	Recommendations    []string `json:"recommendations,omitempty"`
	CertificationValid bool     `json:"certification_valid"`
}

// certificationThreshold gates the final verdict and its recommendations
const certificationThreshold = 0.95

// ValidateRecoveryIntegrity certifies recovered data on three signals:
// per-record checksum agreement with the catalogue, referential integrity
// of the recovered state, and completeness against expected record counts.
// The overall verdict is the average of the three.
func (s *Service) ValidateRecoveryIntegrity(data RecoveryData) *IntegrityCertification {
	cert := &IntegrityCertification{}

	// Signal 1: per-record checksums against catalogue expectations
	var matched, expectedTotal int
	for entityType, expected := range data.ExpectedChecksums {
		recovered := entity.IndexByID(data.Records[entityType])
		for id, expectedSum := range expected {
			expectedTotal++
			record, ok := recovered[id]
			if !ok {
				cert.MissingRecords++
				cert.MismatchedRecords = append(cert.MismatchedRecords,
					fmt.Sprintf("%s/%s: missing from recovered data", entityType, id))
				continue
			}
			actualSum, err := checksum.Record(record)
			if err != nil || actualSum != expectedSum {
				cert.MismatchedRecords = append(cert.MismatchedRecords,
					fmt.Sprintf("%s/%s: checksum mismatch", entityType, id))
				continue
			}
			matched++
		}
	}
	if expectedTotal == 0 {
		cert.ChecksumScore = 1
	} else {
		cert.ChecksumScore = float64(matched) / float64(expectedTotal)
	}

	// Signal 2: referential integrity of the recovered state
	report := s.validator.ValidateBackupData(data.Records)
	cert.ReferentialScore = report.ReferentialIntegrityScore

	// Signal 3: completeness against expected counts
	var actualRecords, expectedRecords int
	for entityType, expected := range data.ExpectedRecordCounts {
		expectedRecords += expected
		actual := len(data.Records[entityType])
		if actual > expected {
			actual = expected
		}
		actualRecords += actual
	}
	if expectedRecords == 0 {
		cert.DataCompleteness = 1
	} else {
		cert.DataCompleteness = float64(actualRecords) / float64(expectedRecords)
	}

	cert.OverallIntegrity = (cert.ChecksumScore + cert.ReferentialScore + cert.DataCompleteness) / 3
	cert.CertificationValid = cert.OverallIntegrity >= certificationThreshold

	if cert.ChecksumScore < certificationThreshold {
		cert.Recommendations = append(cert.Recommendations,
			"re-run recovery from the last verified backup; recovered records disagree with catalogued checksums")
	}
	if cert.ReferentialScore < certificationThreshold {
		cert.Recommendations = append(cert.Recommendations,
			"widen the recovery scope; recovered records reference data that was not restored")
	}
	if cert.DataCompleteness < certificationThreshold {
		cert.Recommendations = append(cert.Recommendations,
			"verify the backup chain is complete; recovered data is missing expected records")
	}

	s.log.Info("Recovery integrity certified",
		"checksum_score", fmt.Sprintf("%.3f", cert.ChecksumScore),
		"referential_score", fmt.Sprintf("%.3f", cert.ReferentialScore),
		"completeness", fmt.Sprintf("%.3f", cert.DataCompleteness),
		"overall", fmt.Sprintf("%.3f", cert.OverallIntegrity),
		"valid", cert.CertificationValid)

	return cert
}
