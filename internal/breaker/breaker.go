// Package breaker implements the orchestrator's circuit breaker: a
// tri-state (closed/open/half-open) gate generalized from the teacher's
// pkg/agent/middleware/resilience/circuit single failure/success-threshold
// breaker into five distinct named trip conditions (consecutive agent
// errors, global error rate, budget exceeded, token stall, manual).
package breaker

import (
	"sync"
	"time"
)

// State is the breaker's mode.
type State int

// Breaker modes.
const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Reason names why the breaker tripped.
type Reason string

// Trip reasons (spec section 4.5).
const (
	ReasonConsecutiveAgentErrors Reason = "consecutive_agent_errors"
	ReasonGlobalErrorRate        Reason = "global_error_rate"
	ReasonBudgetExceeded         Reason = "budget_exceeded"
	ReasonTokenStall             Reason = "token_stall"
	ReasonManual                 Reason = "manual"
)

// Config parameterizes trip thresholds. Zero ErrorRateWindow disables the
// error-rate trip condition.
type Config struct {
	MaxConsecutiveAgentErrors int
	ErrorRateWindow           int
	ErrorRateThreshold        float64
	HalfOpenProbeTimeout      time.Duration
}

// OnTrip is invoked asynchronously whenever the breaker transitions into
// Open. Implementations must not panic; the breaker recovers a panic but
// logs and otherwise ignores it.
type OnTrip func(reason Reason, message string)

// Breaker is safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	cfg Config

	state   State
	reason  Reason
	message string
	tripAt  time.Time

	// global rolling window of recent outcomes (true = success).
	window    []bool
	windowPos int

	// per-agent consecutive failure tracking for the
	// consecutive_agent_errors condition.
	agentConsecutive map[string]int
	triggeringAgent  string

	onTrip OnTrip
}

// New returns a closed Breaker.
func New(cfg Config, onTrip OnTrip) *Breaker {
	return &Breaker{
		cfg:              cfg,
		state:            Closed,
		agentConsecutive: make(map[string]int),
		onTrip:           onTrip,
	}
}

// Allow reports whether a new operation may proceed. In Open state, it
// transitions to HalfOpen once HalfOpenProbeTimeout has elapsed since the
// trip and allows exactly one probe through; concurrent callers during
// that single allowed window may both see true (the breaker only bounds
// rate, it does not serialize callers — callers needing exclusivity should
// use a separate lock).
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.cfg.HalfOpenProbeTimeout > 0 && time.Since(b.tripAt) >= b.cfg.HalfOpenProbeTimeout {
			b.state = HalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// State returns the current mode.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// TripInfo describes the current (or most recent) trip.
type TripInfo struct {
	State   State
	Reason  Reason
	Message string
	TrippedAt time.Time
}

// Info returns a snapshot of the breaker's trip state.
func (b *Breaker) Info() TripInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return TripInfo{State: b.state, Reason: b.reason, Message: b.message, TrippedAt: b.tripAt}
}

// RecordAgentOutcome records success/failure for a single agent session
// and evaluates the consecutive-agent-errors trip condition. It also feeds
// the global rolling window for the error-rate condition.
func (b *Breaker) RecordAgentOutcome(agentID string, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.agentConsecutive[agentID] = 0
	} else {
		b.agentConsecutive[agentID]++
	}
	b.pushWindowLocked(success)

	if b.state == HalfOpen {
		if success {
			b.closeLocked()
		} else {
			b.tripLocked(ReasonConsecutiveAgentErrors, "probe failed in half-open state", agentID)
		}
		return
	}

	if b.state == Open {
		return
	}

	if !success && b.cfg.MaxConsecutiveAgentErrors > 0 &&
		b.agentConsecutive[agentID] >= b.cfg.MaxConsecutiveAgentErrors {
		b.tripLocked(ReasonConsecutiveAgentErrors,
			"agent "+agentID+" reached max consecutive errors", agentID)
		return
	}

	b.evaluateErrorRateLocked()
}

func (b *Breaker) pushWindowLocked(success bool) {
	if b.cfg.ErrorRateWindow <= 0 {
		return
	}
	if len(b.window) < b.cfg.ErrorRateWindow {
		b.window = append(b.window, success)
		return
	}
	b.window[b.windowPos] = success
	b.windowPos = (b.windowPos + 1) % b.cfg.ErrorRateWindow
}

func (b *Breaker) evaluateErrorRateLocked() {
	if b.cfg.ErrorRateWindow <= 0 || len(b.window) < b.cfg.ErrorRateWindow {
		return
	}
	failures := 0
	for _, ok := range b.window {
		if !ok {
			failures++
		}
	}
	rate := float64(failures) / float64(len(b.window))
	if rate > b.cfg.ErrorRateThreshold {
		b.tripLocked(ReasonGlobalErrorRate, "global error rate exceeded threshold", "")
	}
}

// TripBudgetExceeded trips the breaker for a budget-exceeded condition.
// Idempotent while already tripped.
func (b *Breaker) TripBudgetExceeded(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripLocked(ReasonBudgetExceeded, message, "")
}

// TripTokenStall trips the breaker because an agent consumed tokens
// without meaningful output beyond the configured limit.
func (b *Breaker) TripTokenStall(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripLocked(ReasonTokenStall, message, "")
}

// TripManual trips the breaker by operator action.
func (b *Breaker) TripManual(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripLocked(ReasonManual, message, "")
}

// tripLocked is idempotent: a breaker already Open ignores further trip
// calls until Reset.
func (b *Breaker) tripLocked(reason Reason, message, triggeringAgent string) {
	if b.state == Open {
		return
	}
	b.state = Open
	b.reason = reason
	b.message = message
	b.tripAt = time.Now()
	b.triggeringAgent = triggeringAgent

	if b.onTrip != nil {
		go func(r Reason, m string) {
			defer func() { _ = recover() }()
			b.onTrip(r, m)
		}(reason, message)
	}
}

func (b *Breaker) closeLocked() {
	b.state = Closed
	b.reason = ""
	b.message = ""
	b.triggeringAgent = ""
	b.window = nil
	b.windowPos = 0
	b.agentConsecutive = make(map[string]int)
}

// Reset clears all counters and state, returning the breaker to Closed as
// if newly constructed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}
