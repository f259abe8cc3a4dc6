// Package checkpoint persists crawl state so an interrupted run can resume
// without refetching completed pages.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"corpuscrawler/internal/frontier"
	"corpuscrawler/internal/hostbucket"
)

// Snapshot is the on-disk crawl state: frontier contents plus per-host
// politeness state and a little run bookkeeping.
type Snapshot struct {
	RunID    string             `json:"run_id"`
	SavedAt  time.Time          `json:"saved_at"`
	Pages    int64              `json:"pages"`
	Frontier frontier.Snapshot  `json:"frontier"`
	Hosts    []hostbucket.State `json:"hosts"`
}

// Save writes the snapshot atomically: a temp file in the target directory is
// renamed over the destination, so a crash never leaves a torn checkpoint.
func Save(path string, snap Snapshot) error {
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.json")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publish checkpoint: %w", err)
	}
	return nil
}

// Load reads a snapshot. A missing file returns os.ErrNotExist so callers can
// distinguish "fresh start" from a corrupt checkpoint.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("checkpoint %s: %w", path, os.ErrNotExist)
		}
		return Snapshot{}, fmt.Errorf("read checkpoint: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return snap, nil
}
