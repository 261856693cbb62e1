package integrity

import (
	"fmt"
	"strings"

	"dataguard/internal/catalog"
	"dataguard/internal/crypto"
	"dataguard/internal/entity"
)

// AlgorithmStrength classifies an encryption algorithm
type AlgorithmStrength string

const (
	StrengthStrong   AlgorithmStrength = "strong"
	StrengthAdequate AlgorithmStrength = "adequate"
	StrengthWeak     AlgorithmStrength = "weak"
	StrengthNone     AlgorithmStrength = "none"
)

// ComplianceRequirements lists the regulations the encryption report maps
var ComplianceRequirements = []string{"GDPR", "HIPAA", "SOC2"}

// EncryptionReport certifies the encryption posture of one backup
type EncryptionReport struct {
	BackupID          string            `json:"backup_id"`
	Algorithm         string            `json:"algorithm"`
	Strength          AlgorithmStrength `json:"strength"`
	SensitiveFields   []string          `json:"sensitive_fields"`
	UnprotectedFields []string          `json:"unprotected_fields,omitempty"`
	Compliance        map[string]bool   `json:"compliance"`
	Issues            []string          `json:"issues,omitempty"`
}

// ClassifyAlgorithm maps an algorithm name to its strength class
func ClassifyAlgorithm(algorithm string) AlgorithmStrength {
	switch {
	case algorithm == "":
		return StrengthNone
	case strings.Contains(algorithm, "aes-256"):
		return StrengthStrong
	case strings.Contains(algorithm, "aes-192"), strings.Contains(algorithm, "aes-128"),
		strings.Contains(algorithm, "chacha20"):
		return StrengthAdequate
	default:
		return StrengthWeak
	}
}

// ValidateEncryption classifies the backup's algorithm strength, confirms
// the declared sensitive fields are actually protected in the sampled
// records, and maps each compliance requirement to compliant/non-compliant.
func (v *Validator) ValidateEncryption(record *catalog.BackupRecord, algorithm string,
	declaredSensitive []string, sample map[entity.Type][]entity.Record) *EncryptionReport {

	report := &EncryptionReport{
		BackupID:        record.ID,
		Algorithm:       algorithm,
		SensitiveFields: declaredSensitive,
		Compliance:      make(map[string]bool),
	}

	if !record.Encrypted {
		report.Strength = StrengthNone
		report.Issues = append(report.Issues, "backup is not encrypted")
	} else {
		report.Strength = ClassifyAlgorithm(strings.ToLower(algorithm))
		if report.Strength == StrengthWeak {
			report.Issues = append(report.Issues,
				fmt.Sprintf("algorithm %s is considered weak", algorithm))
		}
	}

	// Confirm declared sensitive fields carry the encrypted marker
	unprotected := make(map[string]bool)
	for _, records := range sample {
		for _, rec := range records {
			for _, field := range declaredSensitive {
				value, ok := rec[field].(string)
				if !ok || value == "" {
					continue
				}
				if !crypto.IsEncryptedValue(value) {
					unprotected[field] = true
				}
			}
		}
	}
	for field := range unprotected {
		report.UnprotectedFields = append(report.UnprotectedFields, field)
		report.Issues = append(report.Issues,
			fmt.Sprintf("declared sensitive field %q holds plaintext values", field))
	}

	compliant := record.Encrypted &&
		report.Strength == StrengthStrong &&
		len(report.UnprotectedFields) == 0
	for _, requirement := range ComplianceRequirements {
		report.Compliance[requirement] = compliant
	}

	return report
}
