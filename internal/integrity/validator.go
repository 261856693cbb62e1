package integrity

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"dataguard/internal/checksum"
	"dataguard/internal/crypto"
	"dataguard/internal/entity"
	"dataguard/internal/logger"
)

// ReferenceRule declares a cross-entity reference: records of FromEntity
// carry Field values that must resolve to ids of ToEntity records.
type ReferenceRule struct {
	FromEntity entity.Type
	Field      string
	ToEntity   entity.Type
}

// DefaultReferenceRules covers the entity relationships the validator
// checks when none are configured
func DefaultReferenceRules() []ReferenceRule {
	return []ReferenceRule{
		{FromEntity: "projects", Field: "owner_id", ToEntity: "users"},
		{FromEntity: "tasks", Field: "project_id", ToEntity: "projects"},
		{FromEntity: "tasks", Field: "assignee_id", ToEntity: "users"},
	}
}

// Validator verifies file-level and deep data integrity of backup payloads,
// independent of how they were produced
type Validator struct {
	log   logger.Logger
	rules []ReferenceRule
}

// NewValidator creates a validator with the default reference rules
func NewValidator(log logger.Logger) *Validator {
	return &Validator{
		log:   log,
		rules: DefaultReferenceRules(),
	}
}

// NewValidatorWithRules creates a validator with custom reference rules
func NewValidatorWithRules(log logger.Logger, rules []ReferenceRule) *Validator {
	return &Validator{log: log, rules: rules}
}

// FileCheck describes one backup file to verify
type FileCheck struct {
	Name             string `json:"name"`
	SizeBytes        int64  `json:"size_bytes"`
	ExpectedChecksum string `json:"expected_checksum"`
	ActualChecksum   string `json:"actual_checksum"`
}

// FileResult is the per-file verification outcome
type FileResult struct {
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
	Issue string `json:"issue,omitempty"`
}

// FileReport aggregates per-file verification results
type FileReport struct {
	OverallValid    bool         `json:"overall_valid"`
	Files           []FileResult `json:"files"`
	Recommendations []string     `json:"recommendations,omitempty"`
}

// ValidateFiles verifies file-level integrity: checksums must match and
// zero-size files are rejected. OverallValid is the AND over all files.
func (v *Validator) ValidateFiles(files []FileCheck) *FileReport {
	report := &FileReport{OverallValid: true}

	for _, f := range files {
		result := FileResult{Name: f.Name, Valid: true}

		switch {
		case f.SizeBytes == 0:
			result.Valid = false
			result.Issue = "file is empty"
		case f.ExpectedChecksum != f.ActualChecksum:
			result.Valid = false
			result.Issue = fmt.Sprintf("checksum mismatch: expected %s, got %s",
				f.ExpectedChecksum, f.ActualChecksum)
		}

		if !result.Valid {
			report.OverallValid = false
		}
		report.Files = append(report.Files, result)
	}

	if !report.OverallValid {
		report.Recommendations = append(report.Recommendations,
			"re-run the backup for the failed files",
			"audit the backup process for corruption during transfer or storage")
	}

	return report
}

// Violation is one deep-validation finding with an auto-fix suggestion
type Violation struct {
	EntityType entity.Type `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Field      string      `json:"field,omitempty"`
	Issue      string      `json:"issue"`
	Suggestion string      `json:"suggestion"`
}

// DeepReport is the outcome of deep data validation
type DeepReport struct {
	TotalRecords     int         `json:"total_records"`
	DataQualityScore float64     `json:"data_quality_score"`
	Violations       []Violation `json:"violations"`
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// PerformDeepValidation runs field-level schema checks and cross-entity
// referential checks over restored data.
// dataQualityScore = 1 - totalIssues/totalRecords, floored at 0.
func (v *Validator) PerformDeepValidation(restored map[entity.Type][]entity.Record) *DeepReport {
	report := &DeepReport{Violations: make([]Violation, 0)}

	// Field-level schema checks
	for entityType, records := range restored {
		report.TotalRecords += len(records)
		for _, record := range records {
			id := record.ID()
			if id == "" {
				report.Violations = append(report.Violations, Violation{
					EntityType: entityType,
					Issue:      "record has no stable id",
					Suggestion: "assign a unique id or drop the record",
				})
				continue
			}
			if email, ok := record["email"].(string); ok && email != "" {
				if !crypto.IsEncryptedValue(email) && !emailPattern.MatchString(email) {
					report.Violations = append(report.Violations, Violation{
						EntityType: entityType,
						EntityID:   id,
						Field:      "email",
						Issue:      "malformed email address",
						Suggestion: "normalize the address or clear the field",
					})
				}
			}
		}
	}

	// Cross-entity referential checks within the restored scope
	ids := make(map[entity.Type]map[string]bool, len(restored))
	for entityType, records := range restored {
		set := make(map[string]bool, len(records))
		for _, r := range records {
			if id := r.ID(); id != "" {
				set[id] = true
			}
		}
		ids[entityType] = set
	}

	for _, rule := range v.rules {
		records, ok := restored[rule.FromEntity]
		if !ok {
			continue
		}
		targets := ids[rule.ToEntity]
		for _, record := range records {
			ref, ok := record[rule.Field].(string)
			if !ok || ref == "" {
				continue
			}
			if !targets[ref] {
				report.Violations = append(report.Violations, Violation{
					EntityType: rule.FromEntity,
					EntityID:   record.ID(),
					Field:      rule.Field,
					Issue: fmt.Sprintf("reference %s=%s does not resolve to any %s record",
						rule.Field, ref, rule.ToEntity),
					Suggestion: fmt.Sprintf("restore the missing %s record or clear the reference", rule.ToEntity),
				})
			}
		}
	}

	if report.TotalRecords == 0 {
		report.DataQualityScore = 1
	} else {
		score := 1 - float64(len(report.Violations))/float64(report.TotalRecords)
		if score < 0 {
			score = 0
		}
		report.DataQualityScore = score
	}

	return report
}

// IntegrityReport is the pre-store integrity gate over extracted backup data
type IntegrityReport struct {
	IsValid                   bool                   `json:"is_valid"`
	SchemaValid               bool                   `json:"schema_valid"`
	SchemaIssues              []string               `json:"schema_issues,omitempty"`
	ReferentialIntegrityScore float64                `json:"referential_integrity_score"`
	DuplicateRecords          []string               `json:"duplicate_records,omitempty"`
	MissingReferences         []string               `json:"missing_references,omitempty"`
	Checksums                 map[entity.Type]string `json:"checksums"`
	EncryptedFields           []string               `json:"encrypted_fields,omitempty"`
}

// ReferentialIntegrityThreshold gates backup validity: a backup whose
// cross-entity references resolve at or below this ratio is rejected.
const ReferentialIntegrityThreshold = 0.95

// ValidateBackupData gates a backup payload before it is persisted:
// schema validation, referential-integrity scoring (valid references /
// total references), duplicate-id detection, per-entity checksums, and
// detection of which fields are already encrypted.
// IsValid = SchemaValid AND ReferentialIntegrityScore > 0.95.
func (v *Validator) ValidateBackupData(data map[entity.Type][]entity.Record) *IntegrityReport {
	report := &IntegrityReport{
		SchemaValid: true,
		Checksums:   make(map[entity.Type]string),
	}

	ids := make(map[entity.Type]map[string]bool, len(data))
	encryptedFields := make(map[string]bool)

	for entityType, records := range data {
		set := make(map[string]bool, len(records))
		for i, record := range records {
			id := record.ID()
			if id == "" {
				report.SchemaValid = false
				report.SchemaIssues = append(report.SchemaIssues,
					fmt.Sprintf("%s[%d]: missing stable id", entityType, i))
				continue
			}
			if set[id] {
				report.DuplicateRecords = append(report.DuplicateRecords,
					fmt.Sprintf("%s/%s", entityType, id))
			}
			set[id] = true

			for field, raw := range record {
				if value, ok := raw.(string); ok && crypto.IsEncryptedValue(value) {
					encryptedFields[field] = true
				}
			}
		}
		ids[entityType] = set

		sums, err := checksum.RecordSet(records)
		if err != nil {
			report.SchemaValid = false
			report.SchemaIssues = append(report.SchemaIssues,
				fmt.Sprintf("%s: checksum failure: %v", entityType, err))
			continue
		}
		// Entity-level checksum covers the whole record set
		report.Checksums[entityType] = checksum.Bytes([]byte(joinSums(sums)))
	}

	// Referential integrity: valid cross-entity references / total references
	totalRefs, validRefs := 0, 0
	for _, rule := range v.rules {
		records, ok := data[rule.FromEntity]
		if !ok {
			continue
		}
		targets := ids[rule.ToEntity]
		for _, record := range records {
			ref, ok := record[rule.Field].(string)
			if !ok || ref == "" {
				continue
			}
			totalRefs++
			if targets[ref] {
				validRefs++
			} else {
				report.MissingReferences = append(report.MissingReferences,
					fmt.Sprintf("%s/%s.%s -> %s", rule.FromEntity, record.ID(), rule.Field, ref))
			}
		}
	}
	if totalRefs == 0 {
		report.ReferentialIntegrityScore = 1
	} else {
		report.ReferentialIntegrityScore = float64(validRefs) / float64(totalRefs)
	}

	for field := range encryptedFields {
		report.EncryptedFields = append(report.EncryptedFields, field)
	}

	report.IsValid = report.SchemaValid &&
		report.ReferentialIntegrityScore > ReferentialIntegrityThreshold

	return report
}

// joinSums flattens an id->checksum map into a canonical string
func joinSums(sums map[string]string) string {
	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	// Lexicographic order keeps the entity-level checksum deterministic
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(sums[k])
		sb.WriteString(";")
	}
	return sb.String()
}
