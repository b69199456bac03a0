package scheduler

import (
	"testing"

	"trafficcontrol/internal/capacity"
)

func idSeq() IDGenerator {
	n := 0
	return func() string {
		n++
		return string(rune('a' + n - 1))
	}
}

func TestFIFOScheduleRespectsCapacity(t *testing.T) {
	ledger := capacity.NewLedger(map[string]int{"sonnet": 1})
	s := NewFIFOScheduler(ledger, idSeq())
	s.Enqueue(Task{ID: "t1", Model: "sonnet", PriorityConfirmed: true})
	s.Enqueue(Task{ID: "t2", Model: "sonnet", PriorityConfirmed: true})

	result := s.ScheduleNext("", nil)
	if len(result.Tasks) != 1 {
		t.Fatalf("expected exactly one assignment due to capacity limit 1, got %d", len(result.Tasks))
	}

	result2 := s.ScheduleNext("", nil)
	if len(result2.Tasks) != 0 {
		t.Fatalf("expected no further assignment while capacity is exhausted, got %d", len(result2.Tasks))
	}
}

func TestFIFOScheduleHonorsAdmissibleFilter(t *testing.T) {
	ledger := capacity.NewLedger(map[string]int{"sonnet": 2})
	s := NewFIFOScheduler(ledger, idSeq())
	s.Enqueue(Task{ID: "needs-approval", Model: "sonnet", PriorityConfirmed: false})
	s.Enqueue(Task{ID: "confirmed", Model: "sonnet", PriorityConfirmed: true})

	filter := func(task Task) bool { return task.PriorityConfirmed }
	result := s.ScheduleNext("", filter)

	if len(result.Tasks) != 1 || result.Tasks[0].TaskID != "confirmed" {
		t.Fatalf("expected only the confirmed task to be assigned, got %+v", result.Tasks)
	}

	// the filtered-out task remains queued
	if s.GetStats().QueueDepth != 1 {
		t.Fatalf("expected 1 task still queued, got %d", s.GetStats().QueueDepth)
	}
}

func TestCanScheduleFalseWhenQueueEmpty(t *testing.T) {
	ledger := capacity.NewLedger(map[string]int{"sonnet": 2})
	s := NewFIFOScheduler(ledger, idSeq())
	if s.CanSchedule() {
		t.Fatal("expected CanSchedule false on empty queue")
	}
}
