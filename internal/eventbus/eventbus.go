// Package eventbus implements the typed, in-process publish/subscribe bus
// that glues the orchestration kernel to its safety monitors and external
// collaborators. Emission is synchronous: emit(event) invokes every
// type-specific handler in insertion order, then every matching pattern
// handler, before returning. Handlers that want to do I/O are responsible
// for spawning and supervising their own goroutines.
package eventbus

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"trafficcontrol/internal/logx"
)

// Type is an event type name, e.g. "agent:completed" or "database:degraded".
type Type string

// Exhaustive event type lexicon (spec section 6).
const (
	TypeAgentSpawned   Type = "agent:spawned"
	TypeAgentQuestion  Type = "agent:question"
	TypeAgentBlocked   Type = "agent:blocked"
	TypeAgentPaused    Type = "agent:paused"
	TypeAgentCompleted Type = "agent:completed"
	TypeAgentFailed    Type = "agent:failed"

	TypeTaskQueued    Type = "task:queued"
	TypeTaskAssigned  Type = "task:assigned"
	TypeTaskCompleted Type = "task:completed"

	TypeCapacityAvailable Type = "capacity:available"
	TypeCapacityExhausted Type = "capacity:exhausted"

	TypeLearningExtracted      Type = "learning:extracted"
	TypeRetrospectiveTriggered Type = "retrospective:triggered"

	TypeSlackMessageReceived Type = "slack:message_received"
	TypeSlackResponseSent    Type = "slack:response_sent"

	TypeSystemStarted Type = "system:started"
	TypeSystemStopped Type = "system:stopped"
	TypeSystemError   Type = "system:error"

	TypeDatabaseHealthy   Type = "database:healthy"
	TypeDatabaseDegraded  Type = "database:degraded"
	TypeDatabaseRecovered Type = "database:recovered"
)

// Event is the envelope delivered to every subscriber. Payload is a closed
// sum over the concrete per-type payload structs declared in this package
// and the kernel package; handlers type-assert on Payload for their type.
type Event struct {
	Type          Type
	Payload       any
	Timestamp     time.Time
	CorrelationID string
}

// ErrorPayload is the payload of a system:error event republished by the
// bus on behalf of a failing handler.
type ErrorPayload struct {
	Component string
	Err       error
}

// Handler receives a single event. A Handler that panics is recovered by
// the bus and reported via system:error; it never aborts delivery to other
// handlers.
type Handler func(Event)

// Unsubscribe removes a previously registered handler. Calling it more
// than once is a no-op.
type Unsubscribe func()

type subscription struct {
	id      uint64
	handler Handler
	once    bool
}

type patternSubscription struct {
	id      uint64
	pattern *regexp.Regexp
	handler Handler
}

// Bus is a single bus instance. The zero value is not usable; construct
// with New. A Bus is safe for concurrent use, but the orchestration kernel
// is the only intended emitter in this module's design (single logical
// control actor, section 5 of the design notes).
type Bus struct {
	mu          sync.Mutex
	subs        map[Type][]*subscription
	patternSubs []*patternSubscription
	nextID      uint64

	history    []Event
	historyCap int

	waiters map[Type][]chan Event

	inErrorHandler bool
	log            *logx.Logger
}

// New returns a Bus with the given bounded history capacity. A historyCap
// of 0 disables history retention (history() always returns nil).
func New(historyCap int) *Bus {
	return &Bus{
		subs:       make(map[Type][]*subscription),
		historyCap: historyCap,
		waiters:    make(map[Type][]chan Event),
		log:        logx.NewLogger("event-bus"),
	}
}

// Subscribe registers handler for every emission of typ, in registration
// order relative to other Subscribe calls for the same type. The returned
// Unsubscribe removes the handler.
func (b *Bus) Subscribe(typ Type, handler Handler) Unsubscribe {
	return b.addSub(typ, handler, false)
}

// SubscribeOnce registers handler to fire on at most one matching emission
// of typ, then auto-unsubscribes.
func (b *Bus) SubscribeOnce(typ Type, handler Handler) Unsubscribe {
	return b.addSub(typ, handler, true)
}

func (b *Bus) addSub(typ Type, handler Handler, once bool) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	sub := &subscription{id: id, handler: handler, once: once}
	b.subs[typ] = append(b.subs[typ], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[typ]
		for i, s := range list {
			if s.id == id {
				b.subs[typ] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// SubscribePattern registers handler for every emission whose Type matches
// re, evaluated after all type-specific handlers for that emission.
func (b *Bus) SubscribePattern(re *regexp.Regexp, handler Handler) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	ps := &patternSubscription{id: id, pattern: re, handler: handler}
	b.patternSubs = append(b.patternSubs, ps)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.patternSubs {
			if s.id == id {
				b.patternSubs = append(b.patternSubs[:i], b.patternSubs[i+1:]...)
				return
			}
		}
	}
}

// Emit appends event to history (timestamping it if zero), then invokes
// matching handlers synchronously: type-specific first, in insertion
// order, then pattern handlers. A handler's panic is recovered and
// republished as system:error with component "event-bus"; this never
// prevents later handlers in the same emission from running.
func (b *Bus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	if b.historyCap > 0 {
		b.history = append(b.history, event)
		if len(b.history) > b.historyCap {
			b.history = b.history[len(b.history)-b.historyCap:]
		}
	}
	typeSubs := append([]*subscription(nil), b.subs[event.Type]...)
	patternSubs := append([]*patternSubscription(nil), b.patternSubs...)
	waiters := b.waiters[event.Type]
	delete(b.waiters, event.Type)
	b.mu.Unlock()

	var fired []*subscription
	for _, sub := range typeSubs {
		b.invoke(event, sub.handler)
		if sub.once {
			fired = append(fired, sub)
		}
	}
	if len(fired) > 0 {
		b.mu.Lock()
		for _, sub := range fired {
			list := b.subs[event.Type]
			for i, s := range list {
				if s.id == sub.id {
					b.subs[event.Type] = append(list[:i], list[i+1:]...)
					break
				}
			}
		}
		b.mu.Unlock()
	}

	for _, ps := range patternSubs {
		if ps.pattern.MatchString(string(event.Type)) {
			b.invoke(event, ps.handler)
		}
	}

	for _, ch := range waiters {
		ch <- event
	}
}

// invoke runs handler, recovering a panic and republishing it as
// system:error. A guard on the bus prevents a failing system:error handler
// from recursing forever.
func (b *Bus) invoke(event Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("event-bus handler panic: %v", r)
			b.log.Error("handler for %s panicked: %v", event.Type, r)
			b.reportError("event-bus", err, event.CorrelationID)
		}
	}()
	handler(event)
}

func (b *Bus) reportError(component string, err error, correlationID string) {
	b.mu.Lock()
	if b.inErrorHandler {
		b.mu.Unlock()
		b.log.Error("suppressing recursive system:error from %s: %v", component, err)
		return
	}
	b.inErrorHandler = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inErrorHandler = false
		b.mu.Unlock()
	}()

	b.Emit(Event{
		Type:          TypeSystemError,
		Payload:       ErrorPayload{Component: component, Err: err},
		CorrelationID: correlationID,
	})
}

// WaitFor blocks until the first emission of typ after the call, or until
// timeout elapses (timeout <= 0 waits forever). Returns an error on
// timeout.
func (b *Bus) WaitFor(typ Type, timeout time.Duration) (Event, error) {
	ch := make(chan Event, 1)
	b.mu.Lock()
	b.waiters[typ] = append(b.waiters[typ], ch)
	b.mu.Unlock()

	if timeout <= 0 {
		return <-ch, nil
	}
	select {
	case e := <-ch:
		return e, nil
	case <-time.After(timeout):
		return Event{}, fmt.Errorf("eventbus: waitFor(%s) timed out after %s", typ, timeout)
	}
}

// HistoryFilter selects a subset of retained history.
type HistoryFilter struct {
	Types         []Type
	CorrelationID string
	Since         time.Time
	Until         time.Time
	Limit         int
}

// History returns retained events matching filter, in chronological
// (emission) order. A zero-value filter returns the full retained window.
func (b *Bus) History(filter HistoryFilter) []Event {
	b.mu.Lock()
	snapshot := append([]Event(nil), b.history...)
	b.mu.Unlock()

	typeSet := make(map[Type]bool, len(filter.Types))
	for _, t := range filter.Types {
		typeSet[t] = true
	}

	out := make([]Event, 0, len(snapshot))
	for _, e := range snapshot {
		if len(typeSet) > 0 && !typeSet[e.Type] {
			continue
		}
		if filter.CorrelationID != "" && e.CorrelationID != filter.CorrelationID {
			continue
		}
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && e.Timestamp.After(filter.Until) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}
