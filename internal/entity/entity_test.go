package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordID(t *testing.T) {
	assert.Equal(t, "u1", Record{"id": "u1"}.ID())
	assert.Empty(t, Record{}.ID())
	assert.Empty(t, Record{"id": 42}.ID())
	assert.False(t, Record{"id": ""}.HasID())
}

func TestLastModified(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, ts, Record{"updated_at": ts}.LastModified())
	assert.Equal(t, ts, Record{"updated_at": ts.Format(time.RFC3339)}.LastModified())
	assert.True(t, Record{}.LastModified().IsZero())
	assert.True(t, Record{"updated_at": "yesterday"}.LastModified().IsZero())
}

func TestCloneSetIsolation(t *testing.T) {
	original := []Record{{"id": "u1", "name": "Alice"}}

	cloned := CloneSet(original)
	cloned[0]["name"] = "Mallory"
	cloned[0]["role"] = "admin"

	assert.Equal(t, "Alice", original[0]["name"])
	assert.NotContains(t, original[0], "role")
}

func TestCloneSetSharesNestedValues(t *testing.T) {
	tags := map[string]interface{}{"team": "core"}
	original := []Record{{"id": "u1", "tags": tags}}

	cloned := CloneSet(original)

	// The copy is one level deep: nested values stay shared, so callers
	// that need isolated nested state must replace the whole field
	cloned[0]["tags"].(map[string]interface{})["team"] = "infra"
	assert.Equal(t, "infra", tags["team"])

	// Replacing the field on the clone leaves the original untouched
	cloned[0]["tags"] = map[string]interface{}{"team": "platform"}
	assert.Equal(t, tags, original[0]["tags"])
}

func TestIndexByID(t *testing.T) {
	index := IndexByID([]Record{
		{"id": "u1", "name": "Alice"},
		{"id": "u2", "name": "Bob"},
		{"name": "no id"},
	})

	require.Len(t, index, 2)
	assert.Equal(t, "Alice", index["u1"]["name"])
}

func TestValidateRecords(t *testing.T) {
	assert.NoError(t, ValidateRecords("users", []Record{{"id": "u1"}}))

	err := ValidateRecords("users", []Record{{"id": "u1"}, {"name": "anonymous"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 1")
}
