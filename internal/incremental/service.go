package incremental

import (
	"fmt"
	"sort"
	"time"

	"dataguard/internal/catalog"
	"dataguard/internal/checksum"
	"dataguard/internal/entity"
	"dataguard/internal/logger"
)

// Service detects changes between snapshots and replays ordered change
// sets to reconstruct state. It also validates backup-chain linkage.
type Service struct {
	log logger.Logger
}

// NewService creates an incremental backup service
func NewService(log logger.Logger) *Service {
	return &Service{log: log}
}

// ChangeSet is the result of diffing a snapshot against current data.
// The partition is exhaustive and mutually exclusive:
// created + updated + unchanged = len(current), deleted = snapshot ids
// absent from current.
type ChangeSet struct {
	Changes   []catalog.ChangeRecord `json:"changes"`
	Created   int                    `json:"created"`
	Updated   int                    `json:"updated"`
	Deleted   int                    `json:"deleted"`
	Unchanged int                    `json:"unchanged"`
}

// IdentifyChanges diffs the current records of one entity type against the
// last snapshot. Checksums are deterministic over lexicographically sorted
// keys, so field-order differences never produce false positives.
func (s *Service) IdentifyChanges(last catalog.Snapshot, entityType entity.Type, current []entity.Record) (*ChangeSet, error) {
	now := time.Now()
	set := &ChangeSet{}
	seen := make(map[string]bool, len(current))

	for _, record := range current {
		id := record.ID()
		if id == "" {
			return nil, fmt.Errorf("entity %s: record without stable id", entityType)
		}
		seen[id] = true

		sum, err := checksum.Record(record)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", entityType, err)
		}

		previous, existed := last.EntityChecksums[id]
		switch {
		case !existed:
			set.Created++
			set.Changes = append(set.Changes, catalog.ChangeRecord{
				EntityType:      entityType,
				EntityID:        id,
				ChangeType:      catalog.ChangeCreated,
				Timestamp:       now,
				CurrentChecksum: sum,
				Data:            record.Clone(),
			})
		case previous != sum:
			set.Updated++
			set.Changes = append(set.Changes, catalog.ChangeRecord{
				EntityType:       entityType,
				EntityID:         id,
				ChangeType:       catalog.ChangeUpdated,
				Timestamp:        now,
				PreviousChecksum: previous,
				CurrentChecksum:  sum,
				Data:             record.Clone(),
			})
		default:
			set.Unchanged++
		}
	}

	// Ids present in the snapshot but gone from current data were deleted
	deletedIDs := make([]string, 0)
	for id := range last.EntityChecksums {
		if !seen[id] {
			deletedIDs = append(deletedIDs, id)
		}
	}
	sort.Strings(deletedIDs)
	for _, id := range deletedIDs {
		set.Deleted++
		set.Changes = append(set.Changes, catalog.ChangeRecord{
			EntityType:       entityType,
			EntityID:         id,
			ChangeType:       catalog.ChangeDeleted,
			Timestamp:        now,
			PreviousChecksum: last.EntityChecksums[id],
		})
	}

	return set, nil
}

// ChangeBatch is the ordered change content of one incremental backup
type ChangeBatch struct {
	BackupID  string                 `json:"backup_id"`
	Timestamp time.Time              `json:"timestamp"`
	Changes   []catalog.ChangeRecord `json:"changes"`
}

// ConflictResolution records a change that could not be applied during
// replay. Replay skips it and continues; it never aborts.
type ConflictResolution struct {
	BackupID   string             `json:"backup_id"`
	EntityType entity.Type        `json:"entity_type"`
	EntityID   string             `json:"entity_id"`
	ChangeType catalog.ChangeType `json:"change_type"`
	Reason     string             `json:"reason"`
	Resolution string             `json:"resolution"`
}

// ReplayResult is the outcome of replaying incremental backups onto a base state
type ReplayResult struct {
	FinalState     map[entity.Type][]entity.Record `json:"final_state"`
	ChangeTimeline []catalog.ChangeRecord          `json:"change_timeline"`
	AppliedChanges int                             `json:"applied_changes"`
	Conflicts      []ConflictResolution            `json:"conflicts"`
}

// ApplyIncrementalChanges replays batches in timestamp order onto a deep
// copy of baseState. Created appends, updated replaces by id, deleted
// removes by id. Replay is deterministic: the same ordered sequence from
// the same base always yields the same final state.
func (s *Service) ApplyIncrementalChanges(baseState map[entity.Type][]entity.Record, batches []ChangeBatch) *ReplayResult {
	// Never mutate the caller's state
	state := make(map[entity.Type][]entity.Record, len(baseState))
	for entityType, records := range baseState {
		state[entityType] = entity.CloneSet(records)
	}

	ordered := make([]ChangeBatch, len(batches))
	copy(ordered, batches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	result := &ReplayResult{
		Conflicts: make([]ConflictResolution, 0),
	}

	for _, batch := range ordered {
		for _, change := range batch.Changes {
			if conflict := applyChange(state, batch.BackupID, change); conflict != nil {
				result.Conflicts = append(result.Conflicts, *conflict)
				if s.log != nil {
					s.log.Warn("Change could not be applied, skipping",
						"backup", batch.BackupID,
						"entity", string(change.EntityType),
						"id", change.EntityID,
						"change", string(change.ChangeType),
						"reason", conflict.Reason)
				}
				continue
			}
			result.AppliedChanges++
			result.ChangeTimeline = append(result.ChangeTimeline, change)
		}
	}

	result.FinalState = state
	return result
}

// applyChange applies a single change to the state, returning a conflict
// record if the change cannot be applied
func applyChange(state map[entity.Type][]entity.Record, backupID string, change catalog.ChangeRecord) *ConflictResolution {
	records := state[change.EntityType]

	switch change.ChangeType {
	case catalog.ChangeCreated:
		if change.Data == nil {
			return conflict(backupID, change, "created change carries no data")
		}
		if _, exists := find(records, change.EntityID); exists {
			return conflict(backupID, change, "record already exists")
		}
		state[change.EntityType] = append(records, change.Data.Clone())

	case catalog.ChangeUpdated:
		if change.Data == nil {
			return conflict(backupID, change, "updated change carries no data")
		}
		idx, exists := find(records, change.EntityID)
		if !exists {
			return conflict(backupID, change, "update target missing")
		}
		records[idx] = change.Data.Clone()

	case catalog.ChangeDeleted:
		idx, exists := find(records, change.EntityID)
		if !exists {
			return conflict(backupID, change, "delete target missing")
		}
		state[change.EntityType] = append(records[:idx], records[idx+1:]...)

	default:
		return conflict(backupID, change, fmt.Sprintf("unknown change type %q", change.ChangeType))
	}

	return nil
}

func find(records []entity.Record, id string) (int, bool) {
	for i, r := range records {
		if r.ID() == id {
			return i, true
		}
	}
	return 0, false
}

func conflict(backupID string, change catalog.ChangeRecord, reason string) *ConflictResolution {
	return &ConflictResolution{
		BackupID:   backupID,
		EntityType: change.EntityType,
		EntityID:   change.EntityID,
		ChangeType: change.ChangeType,
		Reason:     reason,
		Resolution: "skipped",
	}
}
