package source

import (
	"context"

	"dataguard/internal/entity"
)

// Scope defines what a backup covers
type Scope struct {
	// Entities lists the entity types to back up
	Entities []entity.Type

	// RetentionDays overrides the configured retention period when > 0
	RetentionDays int
}

// DataSource supplies the live data that backups cover. The backup engine
// is its only consumer; implementations own consistency of the extraction.
// Extraction always returns the COMPLETE current record set for each scoped
// entity type: change detection diffs that state against the base snapshot,
// and a filtered extraction would make absent-but-unchanged records look
// deleted.
type DataSource interface {
	// ExtractEntityData returns the current records for the scoped entity types
	ExtractEntityData(ctx context.Context, scope Scope) (map[entity.Type][]entity.Record, error)
}
