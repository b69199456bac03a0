package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UsageEntry is one billed-spend record, written best-effort alongside the
// Spend Monitor's in-memory ledger.
type UsageEntry struct {
	SessionID    string    `json:"sessionId"`
	TaskID       string    `json:"taskId"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"inputTokens"`
	OutputTokens int64     `json:"outputTokens"`
	CostUSD      float64   `json:"costUsd"`
	At           time.Time `json:"at"`
}

// UsageLogWriter appends UsageEntry records as JSONL to a daily-rotated
// file, grounded on the teacher's pkg/eventlog.Writer.
type UsageLogWriter struct {
	mu          sync.Mutex
	dir         string
	currentFile *os.File
	currentDate string
}

// NewUsageLogWriter creates dir if needed and opens today's log file.
func NewUsageLogWriter(dir string) (*UsageLogWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: creating usage log dir: %w", err)
	}
	w := &UsageLogWriter{dir: dir}
	if err := w.rotateIfNeeded(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends entry to the current day's log file, rotating first if
// the calendar day has turned over. Swallows and returns write errors
// separately from rotation errors so callers can choose to log-and-ignore
// per the best-effort persistence contract.
func (w *UsageLogWriter) Write(entry UsageEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return fmt.Errorf("persistence: rotating usage log: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("persistence: marshaling usage entry: %w", err)
	}

	bw := bufio.NewWriter(w.currentFile)
	if _, err := bw.Write(data); err != nil {
		return fmt.Errorf("persistence: writing usage entry: %w", err)
	}
	if err := bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("persistence: writing usage entry newline: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("persistence: flushing usage entry: %w", err)
	}
	return w.currentFile.Sync()
}

func (w *UsageLogWriter) rotateIfNeeded() error {
	today := time.Now().Format("2006-01-02")
	if w.currentFile != nil && w.currentDate == today {
		return nil
	}
	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("persistence: closing previous usage log: %w", err)
		}
	}

	path := filepath.Join(w.dir, fmt.Sprintf("usage-%s.jsonl", today))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("persistence: opening usage log %s: %w", path, err)
	}
	w.currentFile = f
	w.currentDate = today
	return nil
}

// Close closes the current log file.
func (w *UsageLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	return err
}

// ReadEntries reads and parses every UsageEntry from a single log file.
func ReadEntries(path string) ([]UsageEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening usage log %s: %w", path, err)
	}
	defer f.Close()

	var entries []UsageEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e UsageEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("persistence: parsing usage entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("persistence: reading usage log %s: %w", path, err)
	}
	return entries, nil
}

// ListLogFiles returns every usage log file path in dir.
func ListLogFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "usage-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("persistence: listing usage logs: %w", err)
	}
	return files, nil
}
