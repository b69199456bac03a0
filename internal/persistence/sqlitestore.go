package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"trafficcontrol/internal/state"
)

// SqliteStateStore is an alternative to the atomic-rename state file for
// deployments that already run the orchestrator against a local SQLite
// database (for instance alongside a SQLite-backed backlog store) and would
// rather avoid a second file format on disk. It persists the same
// state.Snapshot the JSON file does, just as a single row keyed by id=1.
type SqliteStateStore struct {
	db *sql.DB
}

// OpenSqliteStateStore opens (creating if necessary) a SQLite database at
// path and ensures its orchestrator_state table exists.
func OpenSqliteStateStore(path string) (*SqliteStateStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening sqlite state store: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS orchestrator_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		snapshot TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: creating orchestrator_state table: %w", err)
	}
	return &SqliteStateStore{db: db}, nil
}

// Save upserts the current snapshot as the single row.
func (s *SqliteStateStore) Save(snap state.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("persistence: marshaling snapshot: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO orchestrator_state (id, snapshot, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		string(data), snap.LastCheckpoint.Format("2006-01-02T15:04:05.000Z07:00"))
	if err != nil {
		return fmt.Errorf("persistence: saving snapshot: %w", err)
	}
	return nil
}

// Load returns the persisted snapshot, or a zero-value snapshot if none has
// been saved yet.
func (s *SqliteStateStore) Load() (state.Snapshot, error) {
	var data string
	err := s.db.QueryRow(`SELECT snapshot FROM orchestrator_state WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return state.Snapshot{}, nil
	}
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("persistence: loading snapshot: %w", err)
	}
	var snap state.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return state.Snapshot{}, fmt.Errorf("persistence: parsing stored snapshot: %w", err)
	}
	return snap, nil
}

// Close closes the underlying database handle.
func (s *SqliteStateStore) Close() error {
	return s.db.Close()
}

// Probe runs SELECT 1 against the store's handle. Wired as the kernel's
// default DB health probe when a SqliteStateStore is in use, so startup and
// recovery checks exercise the same handle the state itself is persisted
// through rather than a second connection.
func (s *SqliteStateStore) Probe(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("persistence: sqlite health probe: %w", err)
	}
	return nil
}
