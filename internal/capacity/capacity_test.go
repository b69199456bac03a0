package capacity

import "testing"

func TestReserveReleaseInvariant(t *testing.T) {
	l := NewLedger(map[string]int{"sonnet": 2})

	if !l.TryReserve("sonnet", "s1") {
		t.Fatal("expected first reservation to succeed")
	}
	if !l.TryReserve("sonnet", "s2") {
		t.Fatal("expected second reservation to succeed")
	}
	if l.TryReserve("sonnet", "s3") {
		t.Fatal("expected third reservation to fail at limit")
	}

	status := l.GetStatus()[0]
	if status.Current != 2 || len(status.ReservedBy) != 2 {
		t.Fatalf("expected current==2 and 2 reservedBy entries, got %+v", status)
	}

	l.Release("sonnet", "s1")
	if !l.TryReserve("sonnet", "s3") {
		t.Fatal("expected reservation to succeed after release")
	}
}

func TestReleaseUnknownSessionIsNoop(t *testing.T) {
	l := NewLedger(map[string]int{"sonnet": 1})
	l.Release("sonnet", "never-reserved")
	l.Release("unknown-model", "never-reserved")
	if !l.TryReserve("sonnet", "s1") {
		t.Fatal("ledger should be unaffected by releasing unknown sessions")
	}
}

func TestReserveIdempotentForSameSession(t *testing.T) {
	l := NewLedger(map[string]int{"sonnet": 1})
	if !l.TryReserve("sonnet", "s1") {
		t.Fatal("expected first reservation to succeed")
	}
	if !l.TryReserve("sonnet", "s1") {
		t.Fatal("expected re-reserving the same session to be idempotent, not rejected")
	}
	if l.GetStatus()[0].Current != 1 {
		t.Fatal("idempotent reserve must not double count")
	}
}

func TestSyncDropsStaleReservations(t *testing.T) {
	l := NewLedger(map[string]int{"sonnet": 2})
	l.TryReserve("sonnet", "s1")
	l.TryReserve("sonnet", "s2")

	dropped, unreserved := l.Sync(map[string]string{"s1": "sonnet"})
	if len(dropped) != 1 || dropped[0] != "s2" {
		t.Fatalf("expected s2 dropped, got %v", dropped)
	}
	if len(unreserved) != 0 {
		t.Fatalf("expected no unreserved sessions, got %v", unreserved)
	}
	if l.GetStatus()[0].Current != 1 {
		t.Fatal("expected current==1 after sync")
	}
}
