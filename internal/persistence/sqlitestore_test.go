package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"trafficcontrol/internal/state"
)

func TestSqliteStateStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := OpenSqliteStateStore(path)
	if err != nil {
		t.Fatalf("OpenSqliteStateStore: %v", err)
	}
	defer store.Close()

	snap := state.Snapshot{
		IsRunning: true,
		ActiveAgents: []state.AgentRecord{
			{SessionID: "s1", TaskID: "t1", Model: "opus", Status: state.StatusRunning},
		},
		LastCheckpoint: time.Now(),
	}
	if err := store.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.IsRunning || len(loaded.ActiveAgents) != 1 || loaded.ActiveAgents[0].SessionID != "s1" {
		t.Fatalf("unexpected loaded snapshot: %+v", loaded)
	}
}

func TestSqliteStateStoreLoadBeforeSaveReturnsZeroValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := OpenSqliteStateStore(path)
	if err != nil {
		t.Fatalf("OpenSqliteStateStore: %v", err)
	}
	defer store.Close()

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.IsRunning {
		t.Fatal("expected zero-value snapshot before any save")
	}
}

func TestSqliteStateStoreProbeSucceedsOnOpenHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := OpenSqliteStateStore(path)
	if err != nil {
		t.Fatalf("OpenSqliteStateStore: %v", err)
	}
	defer store.Close()

	if err := store.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
}

func TestSqliteStateStoreSaveOverwritesPreviousSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := OpenSqliteStateStore(path)
	if err != nil {
		t.Fatalf("OpenSqliteStateStore: %v", err)
	}
	defer store.Close()

	if err := store.Save(state.Snapshot{IsRunning: true, LastCheckpoint: time.Now()}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(state.Snapshot{IsRunning: false, LastCheckpoint: time.Now()}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.IsRunning {
		t.Fatal("expected the later save to overwrite the earlier one")
	}
}
