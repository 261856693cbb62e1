package pitr

import (
	"fmt"
	"sort"
	"time"

	"dataguard/internal/entity"
)

// ConflictScenario describes a recovery that would overwrite live data:
// the system kept running after the recovery target, so some current
// records are newer than the backup values about to replace them.
type ConflictScenario struct {
	RecoveryTimestamp time.Time                       `json:"recovery_timestamp"`
	CurrentState      map[entity.Type][]entity.Record `json:"current_state"`
	BackupData        map[entity.Type][]entity.Record `json:"backup_data"`
}

// Resolution policies
const (
	ResolutionKeepCurrent = "keep_current"
	ResolutionUseBackup   = "use_backup"
)

// ConflictDecision records how one overlapping record was resolved
type ConflictDecision struct {
	EntityType entity.Type `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Resolution string      `json:"resolution"`
	Rationale  string      `json:"rationale"`
}

// ResolveRecoveryConflicts decides, for every record present in both the
// current state and the backup, whether recovery may overwrite it. Records
// modified after the recovery target keep their current value; everything
// else takes the backup value. Every decision is logged with its rationale.
// Entity types are processed in sorted order so the decision log is stable
// across runs.
func (s *Service) ResolveRecoveryConflicts(scenario ConflictScenario) []ConflictDecision {
	var decisions []ConflictDecision

	entityTypes := make([]entity.Type, 0, len(scenario.BackupData))
	for entityType := range scenario.BackupData {
		entityTypes = append(entityTypes, entityType)
	}
	sort.Slice(entityTypes, func(i, j int) bool { return entityTypes[i] < entityTypes[j] })

	for _, entityType := range entityTypes {
		backupRecords := scenario.BackupData[entityType]
		current := entity.IndexByID(scenario.CurrentState[entityType])

		for _, backupRecord := range backupRecords {
			id := backupRecord.ID()
			currentRecord, exists := current[id]
			if !exists {
				continue
			}

			decision := ConflictDecision{EntityType: entityType, EntityID: id}
			modified := currentRecord.LastModified()
			if !modified.IsZero() && modified.After(scenario.RecoveryTimestamp) {
				decision.Resolution = ResolutionKeepCurrent
				decision.Rationale = fmt.Sprintf(
					"current record modified %s, after recovery target %s; newer data preserved",
					modified.Format(time.RFC3339), scenario.RecoveryTimestamp.Format(time.RFC3339))
			} else {
				decision.Resolution = ResolutionUseBackup
				decision.Rationale = fmt.Sprintf(
					"current record unchanged since recovery target %s; backup value restored",
					scenario.RecoveryTimestamp.Format(time.RFC3339))
			}

			s.log.Info("Recovery conflict resolved",
				"entity_type", string(entityType),
				"entity_id", id,
				"resolution", decision.Resolution,
				"rationale", decision.Rationale)
			decisions = append(decisions, decision)
		}
	}

	return decisions
}
