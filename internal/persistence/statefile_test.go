package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"trafficcontrol/internal/state"
)

func TestSaveLoadStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	snap := state.Snapshot{
		IsRunning: true,
		IsPaused:  false,
		ActiveAgents: []state.AgentRecord{
			{SessionID: "s1", TaskID: "t1", Model: "sonnet", Status: state.StatusRunning, StartedAt: time.Now()},
		},
		LastCheckpoint: time.Now(),
	}

	if err := SaveState(path, snap); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	loaded := LoadState(path, nil)
	if !loaded.IsRunning || len(loaded.ActiveAgents) != 1 || loaded.ActiveAgents[0].SessionID != "s1" {
		t.Fatalf("expected round-tripped snapshot to match, got %+v", loaded)
	}
}

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	loaded := LoadState(filepath.Join(t.TempDir(), "nonexistent.json"), nil)
	if loaded.IsRunning {
		t.Fatal("expected zero-value snapshot for missing file")
	}
}

func TestLoadMalformedFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("writing malformed file: %v", err)
	}
	loaded := LoadState(path, nil)
	if loaded.IsRunning {
		t.Fatal("expected zero-value snapshot for malformed file")
	}
}

func TestSaveStateNeverLeavesTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := SaveState(path, state.Snapshot{}); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		t.Fatalf("expected only state.json in dir, got %v", entries)
	}
}
