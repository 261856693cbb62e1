package catalog

import (
	"time"

	"dataguard/internal/entity"
)

// SnapshotSet groups per-entity snapshots taken at the same instant.
// The backup engine persists one alongside every backup so the next
// incremental can diff against it.
type SnapshotSet struct {
	Timestamp time.Time                         `json:"timestamp"`
	Entities  map[entity.Type]map[string]string `json:"entities"`
}

// NewSnapshotSet creates an empty snapshot set at ts
func NewSnapshotSet(ts time.Time) *SnapshotSet {
	return &SnapshotSet{
		Timestamp: ts,
		Entities:  make(map[entity.Type]map[string]string),
	}
}

// For returns the snapshot of one entity type. Missing entity types yield
// an empty snapshot, which diffs every current record as created.
func (s *SnapshotSet) For(entityType entity.Type) Snapshot {
	sums := s.Entities[entityType]
	if sums == nil {
		sums = make(map[string]string)
	}
	return Snapshot{
		Timestamp:       s.Timestamp,
		EntityChecksums: sums,
	}
}

// Set records the per-id checksums of one entity type
func (s *SnapshotSet) Set(entityType entity.Type, sums map[string]string) {
	s.Entities[entityType] = sums
}
