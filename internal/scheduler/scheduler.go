// Package scheduler defines the task-selection contract the kernel calls
// on each admissible tick, plus a reference in-memory FIFO-per-model
// implementation. Task prioritization policy itself is out of scope; this
// package only owns the capacity/reservation handshake between the
// kernel, the approval gate, and the capacity ledger.
package scheduler

import (
	"sync"

	"github.com/google/uuid"

	"trafficcontrol/internal/capacity"
)

// TaskAssignment is produced on each successful reservation and consumed
// by the kernel to seed an AgentRecord.
type TaskAssignment struct {
	TaskID    string
	SessionID string
	Model     string
}

// Task is the minimal view of a backlog task the scheduler needs.
type Task struct {
	ID                string
	ProjectID         string
	Model             string
	PriorityConfirmed bool
}

// AdmissibleFilter is injected by the kernel (backed by the approval
// gate); it returns whether task may be scheduled this tick.
type AdmissibleFilter func(task Task) bool

// Status describes the outcome of a ScheduleNext call.
type Status string

// Statuses.
const (
	StatusOK        Status = "ok"
	StatusNoWork    Status = "no_work"
	StatusNoCapacity Status = "no_capacity"
)

// Result is returned by ScheduleNext.
type Result struct {
	Status Status
	Tasks  []TaskAssignment
}

// Stats is a point-in-time snapshot of scheduler-visible state.
type Stats struct {
	QueueDepth      int
	CapacityStatus  []capacity.Status
}

// Scheduler is the contract the kernel depends on. Task selection policy
// (which task to pick next among admissible candidates) is intentionally
// unspecified beyond "FIFO" in the reference implementation below; a
// production scheduler plugs in its own policy behind this interface.
type Scheduler interface {
	CanSchedule() bool
	ScheduleNext(projectHint string, filter AdmissibleFilter) Result
	GetStats() Stats
	SyncCapacity(liveSessions map[string]string)
}

// IDGenerator produces a fresh session ID for each new assignment.
type IDGenerator func() string

// FIFOScheduler is a reference in-memory implementation: tasks are
// dequeued in arrival order per model, gated only by capacity and the
// kernel-supplied admissibility filter.
type FIFOScheduler struct {
	mu      sync.Mutex
	queue   []Task
	ledger  *capacity.Ledger
	newID   IDGenerator
}

// NewFIFOScheduler returns a FIFOScheduler backed by ledger for capacity
// reservation and newID for session ID allocation. A nil newID defaults to
// uuid.NewString, matching how production callers allocate session IDs;
// tests typically inject a deterministic generator instead.
func NewFIFOScheduler(ledger *capacity.Ledger, newID IDGenerator) *FIFOScheduler {
	if newID == nil {
		newID = uuid.NewString
	}
	return &FIFOScheduler{ledger: ledger, newID: newID}
}

// Enqueue appends task to the back of its model's FIFO queue.
func (f *FIFOScheduler) Enqueue(task Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, task)
}

// CanSchedule reports whether any queued task has free capacity in its
// model.
func (f *FIFOScheduler) CanSchedule() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.queue {
		if f.ledger.CanReserve(t.Model) {
			return true
		}
	}
	return false
}

// ScheduleNext walks the queue in FIFO order. For each task, if
// projectHint is set and doesn't match, it is skipped for this call but
// left queued. Otherwise the admissible filter is consulted; if it
// rejects the task, the task stays queued (still pending approval) and
// scanning continues. If it admits the task, capacity is reserved; on
// success the task is dequeued and becomes an assignment, on failure
// (no free slot) it stays queued and scanning continues to the next
// task, since a later task for a different model may still fit.
func (f *FIFOScheduler) ScheduleNext(projectHint string, filter AdmissibleFilter) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return Result{Status: StatusNoWork}
	}

	var assignments []TaskAssignment
	remaining := f.queue[:0:0]
	reservedAny := false

	for _, t := range f.queue {
		if projectHint != "" && t.ProjectID != projectHint {
			remaining = append(remaining, t)
			continue
		}
		if filter != nil && !filter(Task{ID: t.ID, ProjectID: t.ProjectID, Model: t.Model, PriorityConfirmed: t.PriorityConfirmed}) {
			remaining = append(remaining, t)
			continue
		}

		sessionID := f.newID()
		if !f.ledger.TryReserve(t.Model, sessionID) {
			remaining = append(remaining, t)
			continue
		}

		assignments = append(assignments, TaskAssignment{TaskID: t.ID, SessionID: sessionID, Model: t.Model})
		reservedAny = true
	}

	f.queue = remaining

	if len(assignments) == 0 {
		if reservedAny {
			return Result{Status: StatusOK}
		}
		return Result{Status: StatusNoCapacity}
	}
	return Result{Status: StatusOK, Tasks: assignments}
}

// GetStats returns queue depth and capacity ledger status.
func (f *FIFOScheduler) GetStats() Stats {
	f.mu.Lock()
	depth := len(f.queue)
	f.mu.Unlock()
	return Stats{QueueDepth: depth, CapacityStatus: f.ledger.GetStatus()}
}

// SyncCapacity reconciles the capacity ledger against liveSessions after
// crash recovery.
func (f *FIFOScheduler) SyncCapacity(liveSessions map[string]string) {
	f.ledger.Sync(liveSessions)
}
