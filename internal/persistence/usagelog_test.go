package persistence

import (
	"testing"
	"time"
)

func TestUsageLogWriteThenReadEntries(t *testing.T) {
	dir := t.TempDir()
	w, err := NewUsageLogWriter(dir)
	if err != nil {
		t.Fatalf("NewUsageLogWriter: %v", err)
	}
	defer w.Close()

	entry := UsageEntry{
		SessionID: "s1", TaskID: "t1", Model: "sonnet",
		InputTokens: 100, OutputTokens: 200, CostUSD: 0.05, At: time.Now(),
	}
	if err := w.Write(entry); err != nil {
		t.Fatalf("Write: %v", err)
	}

	files, err := ListLogFiles(dir)
	if err != nil {
		t.Fatalf("ListLogFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(files))
	}

	entries, err := ReadEntries(files[0])
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != "s1" || entries[0].CostUSD != 0.05 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestUsageLogWriteAppendsMultipleEntries(t *testing.T) {
	dir := t.TempDir()
	w, err := NewUsageLogWriter(dir)
	if err != nil {
		t.Fatalf("NewUsageLogWriter: %v", err)
	}
	defer w.Close()

	for i := 0; i < 3; i++ {
		if err := w.Write(UsageEntry{SessionID: "s1", TaskID: "t", Model: "sonnet", At: time.Now()}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	files, _ := ListLogFiles(dir)
	entries, err := ReadEntries(files[0])
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 appended entries, got %d", len(entries))
	}
}

func TestListLogFilesEmptyDir(t *testing.T) {
	dir := t.TempDir()
	files, err := ListLogFiles(dir)
	if err != nil {
		t.Fatalf("ListLogFiles: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no log files, got %d", len(files))
	}
}
