package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"dataguard/internal/entity"
)

// Record computes the deterministic SHA-256 checksum of a record.
// Serialization goes through encoding/json, which marshals map keys in
// lexicographic order, so two records with the same fields in different
// insertion order always hash identically.
func Record(r entity.Record) (string, error) {
	data, err := json.Marshal(map[string]interface{}(r))
	if err != nil {
		return "", fmt.Errorf("failed to serialize record: %w", err)
	}
	return Bytes(data), nil
}

// RecordSet computes per-record checksums keyed by record id.
// Records without a stable id are skipped.
func RecordSet(records []entity.Record) (map[string]string, error) {
	sums := make(map[string]string, len(records))
	for _, r := range records {
		id := r.ID()
		if id == "" {
			continue
		}
		sum, err := Record(r)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		sums[id] = sum
	}
	return sums, nil
}

// Bytes computes the SHA-256 checksum of a byte slice
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// File calculates the SHA-256 checksum of a file
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Verify compares an expected checksum against the actual checksum of data
func Verify(data []byte, expected string) error {
	actual := Bytes(data)
	if actual != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}
