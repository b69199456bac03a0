package dbhealth

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDegradedThenRecovered(t *testing.T) {
	var mu sync.Mutex
	degradedCount := 0
	var recoveredDowntime time.Duration
	recoveredCh := make(chan struct{})
	degradedCh := make(chan struct{}, 10)

	m := New(Config{MaxConsecutiveFailures: 3},
		func(lastErr error) {
			mu.Lock()
			degradedCount++
			mu.Unlock()
			degradedCh <- struct{}{}
		},
		func(downtime time.Duration) {
			mu.Lock()
			recoveredDowntime = downtime
			mu.Unlock()
			close(recoveredCh)
		},
		nil,
	)

	connErr := errors.New("dial tcp: ECONNREFUSED")
	m.OnDBFailure(connErr)
	m.OnDBFailure(connErr)
	if m.IsDegraded() {
		t.Fatal("should not be degraded before reaching threshold")
	}
	m.OnDBFailure(connErr)

	<-degradedCh
	if !m.IsDegraded() {
		t.Fatal("expected degraded after 3 consecutive failures")
	}

	// Further failures while degraded must not fire OnDegraded again.
	m.OnDBFailure(connErr)
	select {
	case <-degradedCh:
		t.Fatal("OnDegraded fired more than once")
	case <-time.After(50 * time.Millisecond):
	}

	m.OnDBSuccess()
	<-recoveredCh

	mu.Lock()
	defer mu.Unlock()
	if degradedCount != 1 {
		t.Fatalf("expected exactly one degraded transition, got %d", degradedCount)
	}
	if recoveredDowntime < 0 {
		t.Fatalf("expected non-negative downtime, got %v", recoveredDowntime)
	}
	if m.IsDegraded() {
		t.Fatal("expected recovered, not degraded")
	}
}

func TestIsDBErrorSubstringMatch(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("supabase: request failed"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("ENOTFOUND api.example.com"), true},
		{errors.New("invalid argument: model must not be empty"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsDBError(c.err); got != c.want {
			t.Errorf("IsDBError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
