// Package persistence handles the kernel's two durable surfaces: the
// atomically written OrchestrationState snapshot file, and a best-effort,
// fire-and-forget usage log. Grounded on the teacher's pkg/persistence
// (fire-and-forget channel worker) and pkg/eventlog (daily-rotated JSONL
// writer) designs.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"trafficcontrol/internal/logx"
	"trafficcontrol/internal/state"
)

// SaveState writes snap to path atomically: marshal, write to a temp file
// in the same directory, then rename over path. Never leaves a partially
// written file at path.
func SaveState(path string, snap state.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshaling state: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".trafficcontrol-state-*.tmp")
	if err != nil {
		return fmt.Errorf("persistence: creating temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: closing temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: renaming temp state file: %w", err)
	}
	return nil
}

// LoadState reads and unmarshals the state snapshot at path. A missing
// file returns a zero Snapshot and no error (nothing to recover). A
// malformed file is ignored with a logged warning rather than returned as
// an error, matching the spec's best-effort load contract.
func LoadState(path string, log *logx.Logger) state.Snapshot {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) && log != nil {
			log.Warn("reading state file %s: %v", path, err)
		}
		return state.Snapshot{}
	}

	var snap state.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		if log != nil {
			log.Warn("state file %s is malformed, ignoring: %v", path, err)
		}
		return state.Snapshot{}
	}
	return snap
}
