package eventbus

import (
	"sync"
	"testing"
	"time"
)

func TestHistoryRingBuffer(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Emit(Event{Type: "agent:completed", Payload: i})
	}

	hist := b.History(HistoryFilter{})
	if len(hist) != 3 {
		t.Fatalf("expected history length 3, got %d", len(hist))
	}
	if hist[0].Payload.(int) != 2 {
		t.Fatalf("expected oldest retained payload to be the 3rd emission (2), got %v", hist[0].Payload)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := New(0)
	var calls int
	unsub := b.Subscribe("x", func(Event) { calls++ })
	b.Emit(Event{Type: "x"})
	unsub()
	b.Emit(Event{Type: "x"})
	if calls != 1 {
		t.Fatalf("expected 1 call after unsubscribe, got %d", calls)
	}
}

func TestSubscribeOnceFiresAtMostOnce(t *testing.T) {
	b := New(0)
	var calls int
	b.SubscribeOnce("x", func(Event) { calls++ })
	b.Emit(Event{Type: "x"})
	b.Emit(Event{Type: "x"})
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestHandlerPanicDoesNotBlockOthers(t *testing.T) {
	b := New(10)
	var secondCalled bool
	b.Subscribe("x", func(Event) { panic("boom") })
	b.Subscribe("x", func(Event) { secondCalled = true })

	type waitResult struct {
		evt Event
		err error
	}
	waitCh := make(chan waitResult, 1)
	go func() {
		evt, err := b.WaitFor(TypeSystemError, time.Second)
		waitCh <- waitResult{evt, err}
	}()

	// Give WaitFor a moment to register before emitting.
	time.Sleep(10 * time.Millisecond)
	b.Emit(Event{Type: "x"})

	if !secondCalled {
		t.Fatal("expected second handler to run despite first panicking")
	}

	wr := <-waitCh
	if wr.err != nil {
		t.Fatalf("expected system:error event, got timeout: %v", wr.err)
	}
	payload, ok := wr.evt.Payload.(ErrorPayload)
	if !ok || payload.Component != "event-bus" {
		t.Fatalf("expected ErrorPayload with component event-bus, got %+v", wr.evt.Payload)
	}
}

func TestWaitForTimeout(t *testing.T) {
	b := New(0)
	_, err := b.WaitFor("never", 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestEmitThenHistoryLastMatches(t *testing.T) {
	b := New(10)
	b.Emit(Event{Type: "task:completed", Payload: "first"})
	b.Emit(Event{Type: "task:completed", Payload: "second"})

	hist := b.History(HistoryFilter{Types: []Type{"task:completed"}, Limit: 1})
	if len(hist) != 1 || hist[0].Payload.(string) != "second" {
		t.Fatalf("expected last matching event to be 'second', got %+v", hist)
	}
}

func TestConcurrentEmitDoesNotRace(t *testing.T) {
	b := New(100)
	var wg sync.WaitGroup
	b.Subscribe("x", func(Event) {})
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Emit(Event{Type: "x"})
		}()
	}
	wg.Wait()
	if len(b.History(HistoryFilter{})) != 50 {
		t.Fatalf("expected 50 retained events, got %d", len(b.History(HistoryFilter{})))
	}
}
