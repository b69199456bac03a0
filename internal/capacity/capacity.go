// Package capacity implements the per-model reservation ledger described
// as the Capacity Tracker: a small, strict counter discipline grounded on
// the teacher's pkg/limiter token-bucket reservation design, simplified to
// plain slot counting since budget-rate-limiting is the Spend Monitor's
// job in this module.
package capacity

import "sync"

// Ledger holds limit[model] and reservedBy[model] (set of sessionIDs).
// Invariant: len(reservedBy[model]) == current[model] <= limit[model] for
// every model, at all times.
type Ledger struct {
	mu         sync.Mutex
	limits     map[string]int
	reservedBy map[string]map[string]struct{}
}

// NewLedger returns a Ledger with the given per-model limits. Models not
// present in limits have an effective limit of 0.
func NewLedger(limits map[string]int) *Ledger {
	l := &Ledger{
		limits:     make(map[string]int, len(limits)),
		reservedBy: make(map[string]map[string]struct{}, len(limits)),
	}
	for model, limit := range limits {
		l.limits[model] = limit
		l.reservedBy[model] = make(map[string]struct{})
	}
	return l
}

// TryReserve attempts to reserve one slot of model for sessionID. Returns
// true on success. Reserving an already-held sessionID for the same model
// is idempotent and returns true without double-counting.
func (l *Ledger) TryReserve(model, sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, ok := l.reservedBy[model]
	if !ok {
		set = make(map[string]struct{})
		l.reservedBy[model] = set
	}
	if _, already := set[sessionID]; already {
		return true
	}
	if len(set) >= l.limits[model] {
		return false
	}
	set[sessionID] = struct{}{}
	return true
}

// Release frees sessionID's reservation of model. Idempotent: releasing an
// unknown model/sessionID pair is a silent no-op.
func (l *Ledger) Release(model, sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if set, ok := l.reservedBy[model]; ok {
		delete(set, sessionID)
	}
}

// Status is a point-in-time, deep-copied view of one model's reservation
// state.
type Status struct {
	Model      string
	Current    int
	Limit      int
	ReservedBy []string
}

// GetStatus returns a snapshot of every configured model's ledger entry.
func (l *Ledger) GetStatus() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Status, 0, len(l.limits))
	for model, limit := range l.limits {
		set := l.reservedBy[model]
		sessions := make([]string, 0, len(set))
		for sid := range set {
			sessions = append(sessions, sid)
		}
		out = append(out, Status{Model: model, Current: len(set), Limit: limit, ReservedBy: sessions})
	}
	return out
}

// CanReserve reports whether model has at least one free slot.
func (l *Ledger) CanReserve(model string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reservedBy[model]) < l.limits[model]
}

// Sync reconciles the ledger against liveSessions (sessionID -> model),
// the authoritative live agent set recovered after a crash restart. Any
// reservation whose sessionID is not present in liveSessions is dropped;
// any live session missing a reservation is added (capped at the model's
// limit, in which case it is logged by the caller as an over-limit
// recovery and left unreserved).
func (l *Ledger) Sync(liveSessions map[string]string) (dropped, unreserved []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for model, set := range l.reservedBy {
		for sid := range set {
			if liveModel, ok := liveSessions[sid]; !ok || liveModel != model {
				delete(set, sid)
				dropped = append(dropped, sid)
			}
		}
	}

	for sid, model := range liveSessions {
		set, ok := l.reservedBy[model]
		if !ok {
			set = make(map[string]struct{})
			l.reservedBy[model] = set
		}
		if _, already := set[sid]; already {
			continue
		}
		if len(set) >= l.limits[model] {
			unreserved = append(unreserved, sid)
			continue
		}
		set[sid] = struct{}{}
	}
	return dropped, unreserved
}
