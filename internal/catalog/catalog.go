package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"dataguard/internal/entity"
	"dataguard/internal/storage"
)

// IndexKey is the storage key of the persisted catalogue index
const IndexKey = "catalog/index.json"

// Catalog is the persistent index of BackupRecord metadata. The backup
// engine appends to it; chain validation and recovery planning read it.
type Catalog struct {
	mu      sync.RWMutex
	records map[string]*BackupRecord
}

// New creates an empty catalogue
func New() *Catalog {
	return &Catalog{
		records: make(map[string]*BackupRecord),
	}
}

// Load reads the catalogue index from storage. A missing index yields an
// empty catalogue, not an error (first run).
func Load(ctx context.Context, store storage.Backend) (*Catalog, error) {
	c := New()

	exists, err := store.Exists(ctx, IndexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check catalog index: %w", err)
	}
	if !exists {
		return c, nil
	}

	data, err := store.Get(ctx, IndexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog index: %w", err)
	}

	var records []*BackupRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse catalog index: %w", err)
	}

	for _, r := range records {
		c.records[r.ID] = r
	}
	return c, nil
}

// Save persists the catalogue index to storage
func (c *Catalog) Save(ctx context.Context, store storage.Backend) error {
	data, err := json.MarshalIndent(c.List(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog index: %w", err)
	}
	if err := store.Put(ctx, IndexKey, data); err != nil {
		return fmt.Errorf("failed to write catalog index: %w", err)
	}
	return nil
}

// Append adds a backup record to the catalogue.
// The id must be unique; chained backups must name their base.
func (c *Catalog) Append(record *BackupRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.records[record.ID]; exists {
		return fmt.Errorf("backup %s already catalogued", record.ID)
	}
	c.records[record.ID] = record
	return nil
}

// Get returns a backup record by id
func (c *Catalog) Get(id string) (*BackupRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	return r, ok
}

// Remove deletes a backup record from the catalogue
func (c *Catalog) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, id)
}

// List returns all records ordered by timestamp ascending
func (c *Catalog) List() []*BackupRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*BackupRecord, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Len returns the number of catalogued backups
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// LatestFull returns the most recent full backup, or nil if none exists
func (c *Catalog) LatestFull() *BackupRecord {
	var latest *BackupRecord
	for _, r := range c.List() {
		if r.Type == TypeFull {
			latest = r
		}
	}
	return latest
}

// Stats summarizes the catalogue for status reporting
type Stats struct {
	TotalBackups  int                `json:"total_backups"`
	TotalSize     int64              `json:"total_size_bytes"`
	TotalSizeText string             `json:"total_size_human"`
	ByType        map[BackupType]int `json:"by_type"`
	OldestBackup  *time.Time         `json:"oldest_backup,omitempty"`
	NewestBackup  *time.Time         `json:"newest_backup,omitempty"`
	EntityTypes   []entity.Type      `json:"entity_types"`
}

// Summarize computes catalogue statistics
func (c *Catalog) Summarize() Stats {
	records := c.List()

	stats := Stats{
		TotalBackups: len(records),
		ByType:       make(map[BackupType]int),
	}

	entitySet := make(map[entity.Type]bool)
	for _, r := range records {
		stats.TotalSize += r.Statistics.CompressedSize
		stats.ByType[r.Type]++
		for _, e := range r.Entities {
			entitySet[e] = true
		}
	}
	stats.TotalSizeText = FormatSize(stats.TotalSize)

	if len(records) > 0 {
		oldest := records[0].Timestamp
		newest := records[len(records)-1].Timestamp
		stats.OldestBackup = &oldest
		stats.NewestBackup = &newest
	}

	for e := range entitySet {
		stats.EntityTypes = append(stats.EntityTypes, e)
	}
	sort.Slice(stats.EntityTypes, func(i, j int) bool {
		return stats.EntityTypes[i] < stats.EntityTypes[j]
	})

	return stats
}
