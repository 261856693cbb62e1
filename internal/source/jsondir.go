package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dataguard/internal/entity"
)

// JSONDirSource reads entity data from a directory of JSON files, one file
// per entity type ("<dir>/<entityType>.json", a JSON array of records).
// Used by the CLI when no live data source is wired in.
type JSONDirSource struct {
	dir string
}

// NewJSONDirSource creates a data source rooted at dir
func NewJSONDirSource(dir string) (*JSONDirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("data directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data path is not a directory: %s", dir)
	}
	return &JSONDirSource{dir: dir}, nil
}

// ExtractEntityData returns the current records for the scoped entity types
func (s *JSONDirSource) ExtractEntityData(ctx context.Context, scope Scope) (map[entity.Type][]entity.Record, error) {
	out := make(map[entity.Type][]entity.Record, len(scope.Entities))

	for _, entityType := range scope.Entities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.dir, string(entityType)+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read entity data for %s: %w", entityType, err)
		}

		var records []entity.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse entity data for %s: %w", entityType, err)
		}

		out[entityType] = records
	}

	return out, nil
}
