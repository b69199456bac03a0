package productivity

import (
	"testing"
	"time"
)

func TestWarningThenCriticalStall(t *testing.T) {
	var levels []AlertLevel
	ch := make(chan AlertLevel, 10)
	m := New(Config{WarningThreshold: 100, CriticalThreshold: 200, AlertCooldown: time.Millisecond}, func(sessionID string, level AlertLevel, tokens int64) {
		ch <- level
	})

	m.RecordTokens("s1", 150, OutputCounts{})
	lvl := <-ch
	levels = append(levels, lvl)
	if lvl != AlertWarning {
		t.Fatalf("expected warning at 150 tokens, got %s", lvl)
	}

	time.Sleep(5 * time.Millisecond)
	m.RecordTokens("s1", 100, OutputCounts{})
	lvl = <-ch
	levels = append(levels, lvl)
	if lvl != AlertCritical {
		t.Fatalf("expected critical at 250 tokens, got %s", lvl)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(levels))
	}
}

func TestMeaningfulOutputResetsCounter(t *testing.T) {
	fired := false
	ch := make(chan struct{}, 1)
	m := New(Config{WarningThreshold: 100, AlertCooldown: time.Millisecond}, func(string, AlertLevel, int64) {
		fired = true
		ch <- struct{}{}
	})

	m.RecordTokens("s1", 50, OutputCounts{})
	m.RecordTokens("s1", 10, OutputCounts{FilesModified: 1})
	m.RecordTokens("s1", 50, OutputCounts{})

	select {
	case <-ch:
		t.Fatal("should not have fired an alert: output reset the counter below threshold")
	case <-time.After(30 * time.Millisecond):
	}
	if fired {
		t.Fatal("unexpected alert fired")
	}
}

func TestFailingTestRunAloneIsNotMeaningfulOutput(t *testing.T) {
	ch := make(chan struct{}, 1)
	m := New(Config{WarningThreshold: 10, AlertCooldown: time.Millisecond}, func(string, AlertLevel, int64) {
		ch <- struct{}{}
	})

	m.RecordTokens("s1", 15, OutputCounts{TestsRun: 3, TestsPassed: 0})
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a stall alert since only failing tests were reported")
	}
}

func TestConsecutiveFailureStreak(t *testing.T) {
	m := New(Config{}, nil)
	m.RecordAgentCompletion(true, 100, "sonnet")
	m.RecordAgentCompletion(false, 100, "sonnet")
	m.RecordAgentCompletion(false, 100, "sonnet")
	if m.ConsecutiveFailures() != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", m.ConsecutiveFailures())
	}
	m.RecordAgentCompletion(true, 100, "sonnet")
	if m.ConsecutiveFailures() != 0 {
		t.Fatal("expected success to reset consecutive failure streak")
	}
}
