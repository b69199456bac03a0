package approval

import (
	"sync"
	"testing"
)

func TestApprovalGateBlocksThenAdmits(t *testing.T) {
	var mu sync.Mutex
	var requested []string
	requestedCh := make(chan struct{}, 1)

	g := New(Config{RequireApprovalForAll: false, AutoApproveConfirmed: false}, func(task Task, message string) {
		mu.Lock()
		requested = append(requested, task.ID)
		mu.Unlock()
		requestedCh <- struct{}{}
	}, nil)

	task := Task{ID: "task-1", PriorityConfirmed: false}

	if g.IsAdmissible(task) {
		t.Fatal("expected task to require approval and not be admissible yet")
	}
	<-requestedCh

	mu.Lock()
	if len(requested) != 1 || requested[0] != "task-1" {
		t.Fatalf("expected exactly one approval request for task-1, got %v", requested)
	}
	mu.Unlock()

	// Calling again before a response must not re-send the request and
	// must still be inadmissible.
	if g.IsAdmissible(task) {
		t.Fatal("expected still inadmissible before a response")
	}

	g.HandleResponse("task-1", true, "user-1", "")

	if !g.IsAdmissible(task) {
		t.Fatal("expected admissible after approval")
	}
}

func TestRequiresApprovalPolicy(t *testing.T) {
	g := New(Config{RequireApprovalForAll: true}, nil, nil)
	if !g.RequiresApproval(Task{ID: "t", PriorityConfirmed: true}) {
		t.Fatal("RequireApprovalForAll must force approval regardless of confirmation")
	}

	g2 := New(Config{AutoApproveConfirmed: true}, nil, nil)
	if g2.RequiresApproval(Task{ID: "t", PriorityConfirmed: true}) {
		t.Fatal("confirmed priority with AutoApproveConfirmed should not require approval")
	}
	if !g2.RequiresApproval(Task{ID: "t", PriorityConfirmed: false}) {
		t.Fatal("unconfirmed priority should require approval even with AutoApproveConfirmed")
	}
}
