package entity

import (
	"fmt"
	"time"
)

// Type identifies a class of records covered by a backup (e.g. "users", "projects")
type Type string

// Record is a single backed-up record. Records are schemaless maps, but every
// well-formed record carries a stable "id" field.
type Record map[string]interface{}

// ID returns the record's stable identifier, or "" if missing
func (r Record) ID() string {
	if id, ok := r["id"].(string); ok {
		return id
	}
	return ""
}

// HasID reports whether the record carries a non-empty stable identifier
func (r Record) HasID() bool {
	return r.ID() != ""
}

// LastModified returns the record's last-modified timestamp.
// Accepts time.Time values or RFC3339 strings; returns the zero time otherwise.
func (r Record) LastModified() time.Time {
	v, ok := r["updated_at"]
	if !ok {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CloneSet copies a record set one level deep: each record is a fresh map,
// but nested values are shared with the originals. Adding, removing, or
// replacing top-level fields on a clone never touches the caller's records.
func CloneSet(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out
}

// IndexByID builds an id -> record lookup table
func IndexByID(records []Record) map[string]Record {
	index := make(map[string]Record, len(records))
	for _, r := range records {
		if id := r.ID(); id != "" {
			index[id] = r
		}
	}
	return index
}

// ValidateRecords checks structural well-formedness: every record must have a
// stable id. Returns the ids seen and an error naming the first malformed record.
func ValidateRecords(entityType Type, records []Record) error {
	for i, r := range records {
		if !r.HasID() {
			return fmt.Errorf("entity %s: record at index %d has no stable id", entityType, i)
		}
	}
	return nil
}
