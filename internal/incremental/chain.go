package incremental

import (
	"sort"

	"dataguard/internal/catalog"
)

// Chain issue codes
const (
	IssueMissingBaseBackup = "missing_base_backup"
)

// BrokenLink describes an incremental backup whose base cannot be resolved
type BrokenLink struct {
	BackupID     string `json:"backup_id"`
	BaseBackupID string `json:"base_backup_id"`
	Issue        string `json:"issue"`
}

// ChainReport is the diagnostic output of chain validation. Validation
// never mutates the catalogue.
type ChainReport struct {
	IsValid        bool         `json:"is_valid"`
	ValidChains    [][]string   `json:"valid_chains"`
	BrokenChains   []BrokenLink `json:"broken_chains"`
	Recommendation string       `json:"recommendation,omitempty"`
}

// ValidateBackupChain walks the catalogued backups as a directed forest
// keyed by backup id, with edges from each chained backup back to its base.
// Starting at each full backup it extends the chain tip through incrementals
// whose base equals the tip. Any chained backup whose base does not resolve
// anywhere in the catalogue is reported as broken.
func (s *Service) ValidateBackupChain(records []*catalog.BackupRecord) *ChainReport {
	report := &ChainReport{
		IsValid:      true,
		ValidChains:  make([][]string, 0),
		BrokenChains: make([]BrokenLink, 0),
	}

	byID := make(map[string]*catalog.BackupRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	ordered := make([]*catalog.BackupRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	// Dangling edges: a chained backup whose base is not catalogued
	for _, r := range ordered {
		if r.Type.RequiresBase() {
			if _, ok := byID[r.BaseBackupID]; !ok {
				report.IsValid = false
				report.BrokenChains = append(report.BrokenChains, BrokenLink{
					BackupID:     r.ID,
					BaseBackupID: r.BaseBackupID,
					Issue:        IssueMissingBaseBackup,
				})
			}
		}
	}

	// Build one chain per full backup by walking the tip forward
	for _, root := range ordered {
		if root.Type != catalog.TypeFull {
			continue
		}
		chain := []string{root.ID}
		tip := root.ID
		for _, candidate := range ordered {
			if candidate.Type.RequiresBase() && candidate.BaseBackupID == tip {
				chain = append(chain, candidate.ID)
				tip = candidate.ID
			}
		}
		report.ValidChains = append(report.ValidChains, chain)
	}

	if !report.IsValid {
		report.Recommendation = "one or more incremental backups reference a missing base; " +
			"take a fresh full backup to start a new chain and re-run verification"
	}

	return report
}
