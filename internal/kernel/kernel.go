// Package kernel implements the orchestration kernel: the single
// long-lived control loop that polls a scheduler for work, reserves and
// releases per-model capacity, tracks every spawned agent's lifecycle via
// a typed event stream, enforces the four runtime safety monitors plus
// the circuit breaker, persists recoverable state, and degrades and
// recovers from external-dependency failures without losing work.
//
// Grounded on the teacher's internal/kernel.Kernel (service composition,
// Start/Stop ordering, persistence worker goroutine) and
// internal/supervisor.Supervisor (event-driven state machine, graceful
// shutdown draining). All kernel-owned mutable state is mutated only from
// one serialized actor goroutine, reached by funneling the poll timer and
// every inbound agent event through a single select loop — equivalent to
// the teacher's single persistence-worker-drains-one-channel pattern,
// generalized to the kernel's full state machine.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trafficcontrol/internal/approval"
	"trafficcontrol/internal/breaker"
	"trafficcontrol/internal/capacity"
	"trafficcontrol/internal/config"
	"trafficcontrol/internal/dbhealth"
	"trafficcontrol/internal/eventbus"
	"trafficcontrol/internal/httpapi"
	"trafficcontrol/internal/logx"
	"trafficcontrol/internal/metrics"
	"trafficcontrol/internal/notify"
	"trafficcontrol/internal/persistence"
	"trafficcontrol/internal/preflight"
	"trafficcontrol/internal/pricing"
	"trafficcontrol/internal/productivity"
	"trafficcontrol/internal/scheduler"
	"trafficcontrol/internal/spend"
	"trafficcontrol/internal/state"
)

// RunState is the kernel's lifecycle state machine position.
type RunState string

// States (spec section 4.4). Degraded is an orthogonal sub-state recorded
// alongside Running, not a distinct RunState value.
const (
	StateStopped  RunState = "stopped"
	StateStarting RunState = "starting"
	StateRunning  RunState = "running"
	StatePaused   RunState = "paused"
	StateStopping RunState = "stopping"
)

// AgentEventType names an inbound agent lifecycle event.
type AgentEventType string

// Agent lifecycle event types the runtime reports.
const (
	AgentEventQuestion      AgentEventType = "question"
	AgentEventBlocker       AgentEventType = "blocker"
	AgentEventProgress      AgentEventType = "progress"
	AgentEventCompletion    AgentEventType = "completion"
	AgentEventError         AgentEventType = "error"
	AgentEventSubagentSpawn AgentEventType = "subagent_spawn"
)

// AgentEvent is what the agent runtime (out of scope; named interface
// only) reports to the kernel for a single session.
type AgentEvent struct {
	Type          AgentEventType
	SessionID     string
	TaskID        string
	Model         string
	ProjectID     string
	BlockerReason string
	ErrorMessage  string

	// completion/error/progress payload. DurationMs and CostUSD are only
	// meaningful on completion/error; progress events report token/output
	// deltas only.
	InputTokens  int64
	OutputTokens int64
	TokensUsed   int64 // used to derive Input/Output via 30/70 split when the above are absent
	CostUSD      float64
	DurationMs   int64
	Outputs      productivity.OutputCounts

	CorrelationID string
}

// AgentLookup resolves a sessionID newly returned by the scheduler into
// confirmation that the agent runtime actually admitted it. A missing
// session means the reservation is considered lost.
type AgentLookup func(sessionID string) bool

// RetrospectiveTrigger is consulted best-effort on agent failure when a
// task's projectID can be resolved. Out of scope for this module beyond
// the named hook; errors and "not found" are both treated as skip.
type RetrospectiveTrigger func(projectID, taskID string) error

// Deps bundles every collaborator the kernel composes. Fields left nil
// get a sensible default (NoopNotifier, no pre-flight, no retrospective
// hook) rather than a hard dependency.
type Deps struct {
	Config    config.Config
	Scheduler scheduler.Scheduler
	Ledger    *capacity.Ledger

	Notifier     notify.Notifier
	AgentLookup  AgentLookup
	Retrospective RetrospectiveTrigger

	DBProbe func(ctx context.Context) error // used at startup and for recovery probes

	StatePath    string
	UsageLogDir  string
}

// Kernel composes every safety subsystem and runs the tick loop.
type Kernel struct {
	cfg config.Config
	log *logx.Logger

	bus        *eventbus.Bus
	store      *state.Store
	ledger     *capacity.Ledger
	breaker    *breaker.Breaker
	spendMon   *spend.Monitor
	prodMon    *productivity.Monitor
	dbMon      *dbhealth.Monitor
	gate       *approval.Gate
	sched      scheduler.Scheduler
	notifier   notify.Notifier
	metrics    *metrics.Registry
	agentLookup AgentLookup
	retro      RetrospectiveTrigger
	dbProbe    func(ctx context.Context) error

	usageLog *persistence.UsageLogWriter

	mu       sync.Mutex
	runState RunState
	degraded bool

	pollTicker  *time.Ticker
	checkinTick *time.Ticker
	agentEvents chan AgentEvent
	controlCh   chan controlMsg
	actorDone   chan struct{}
	shutdownCtx context.Context
	shutdownFn  context.CancelFunc

	budgetWasStopping bool

	tokenStallLimit int64
}

type controlMsgKind int

const (
	ctrlPause controlMsgKind = iota
	ctrlResume
	ctrlStop
)

type controlMsg struct {
	kind controlMsgKind
	done chan struct{}
}

// New constructs a Kernel in the Stopped state. It does not start the
// control loop; call Start for that.
func New(deps Deps) (*Kernel, error) {
	if deps.Scheduler == nil {
		return nil, errors.New("kernel: Scheduler dependency is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("kernel: Ledger dependency is required")
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewNoopNotifier()
	}

	k := &Kernel{
		cfg:         deps.Config,
		log:         logx.NewLogger("kernel"),
		bus:         eventbus.New(deps.Config.EventHistorySize),
		store:       state.New(),
		ledger:      deps.Ledger,
		sched:       deps.Scheduler,
		notifier:    notifier,
		metrics:     metrics.NewRegistry(),
		agentLookup: deps.AgentLookup,
		retro:       deps.Retrospective,
		dbProbe:     deps.DBProbe,
		runState:    StateStopped,
		agentEvents: make(chan AgentEvent, 256),
		controlCh:   make(chan controlMsg),

		tokenStallLimit: deps.Config.TokenLimitWithoutOutput,
	}

	k.breaker = breaker.New(breaker.Config{
		MaxConsecutiveAgentErrors: deps.Config.MaxConsecutiveAgentErrors,
		ErrorRateWindow:           deps.Config.ErrorRateWindow,
		ErrorRateThreshold:        deps.Config.ErrorRateThreshold,
		HalfOpenProbeTimeout:      time.Duration(deps.Config.HalfOpenProbeTimeoutMs) * time.Millisecond,
	}, k.onBreakerTrip)

	k.spendMon = spend.New(spend.Config{
		DailyBudgetUSD:  deps.Config.DailyBudgetUSD,
		WeeklyBudgetUSD: deps.Config.WeeklyBudgetUSD,
		WarningPercent:  deps.Config.WarningPercent,
		CriticalPercent: deps.Config.CriticalPercent,
		HardStopAtLimit: deps.Config.HardStopAtLimit,
	}, k.onSpendAlert)

	k.prodMon = productivity.New(productivity.Config{
		WarningThreshold:  deps.Config.ProductivityWarningTokens,
		CriticalThreshold: deps.Config.ProductivityCriticalTokens,
		AlertCooldown:     time.Duration(deps.Config.ProductivityAlertCooldownMs) * time.Millisecond,
		AutoPauseCritical: deps.Config.ProductivityAutoPause,
	}, k.onProductivityAlert)

	k.dbMon = dbhealth.New(dbhealth.Config{
		MaxConsecutiveFailures: deps.Config.MaxConsecutiveDBFailures,
	}, k.onDBDegraded, k.onDBRecovered, k.onDBHealthy)

	k.gate = approval.New(approval.Config{
		RequireApprovalForAll: deps.Config.RequireApprovalForAll,
		AutoApproveConfirmed:  deps.Config.AutoApproveConfirmed,
	}, k.sendApprovalRequest, k.onApprovalDecision)

	if deps.UsageLogDir != "" {
		w, err := persistence.NewUsageLogWriter(deps.UsageLogDir)
		if err != nil {
			k.log.Warn("usage log disabled: %v", err)
		} else {
			k.usageLog = w
		}
	}

	return k, nil
}

// Bus returns the kernel's event bus, so external collaborators (CLI,
// Slack handlers) can subscribe.
func (k *Kernel) Bus() *eventbus.Bus { return k.bus }

// Metrics returns the kernel's Prometheus registry.
func (k *Kernel) Metrics() *metrics.Registry { return k.metrics }

// State returns the current lifecycle state.
func (k *Kernel) State() RunState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.runState
}

// Degraded reports whether the kernel is in the degraded DB sub-state.
func (k *Kernel) Degraded() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.degraded
}

// HealthStatus implements httpapi.StatusProvider.
func (k *Kernel) HealthStatus() httpapi.Status {
	k.mu.Lock()
	rs := k.runState
	degraded := k.degraded
	k.mu.Unlock()

	return httpapi.Status{
		State:         string(rs),
		Degraded:      degraded,
		ActiveAgents:  k.store.Count(""),
		BreakerState:  k.breaker.State().String(),
		DailySpendUSD: k.spendMon.DailySpend(),
	}
}

// Start runs the strict startup sequence (spec section 4.4): DB probe,
// pre-flight (left to the caller; PreflightResults may be passed via
// RunPreflight before Start), load persisted state, reconcile capacity,
// arm timers, and enter the actor loop. Any failure aborts startup and
// leaves the kernel Stopped.
func (k *Kernel) Start(ctx context.Context) error {
	k.mu.Lock()
	if k.runState != StateStopped {
		k.mu.Unlock()
		return fmt.Errorf("kernel: cannot start from state %s", k.runState)
	}
	k.runState = StateStarting
	k.mu.Unlock()

	if k.dbProbe != nil {
		if err := k.dbProbe(ctx); err != nil {
			k.mu.Lock()
			k.runState = StateStopped
			k.mu.Unlock()
			return fmt.Errorf("kernel: startup DB probe failed: %w", err)
		}
		k.dbMon.RecordStartupHealthy(0)
	}

	if k.cfg.StatePath != "" {
		snap := persistence.LoadState(k.cfg.StatePath, k.log)
		k.store.Restore(snap)
	}

	live := make(map[string]string, k.store.Count(""))
	for _, rec := range k.store.ActiveAgents() {
		live[rec.SessionID] = rec.Model
	}
	k.sched.SyncCapacity(live)

	k.shutdownCtx, k.shutdownFn = context.WithCancel(context.Background())
	k.pollTicker = time.NewTicker(time.Duration(k.cfg.PollIntervalMs) * time.Millisecond)
	if k.cfg.StatusCheckInIntervalMs > 0 {
		k.checkinTick = time.NewTicker(time.Duration(k.cfg.StatusCheckInIntervalMs) * time.Millisecond)
	}

	k.mu.Lock()
	k.runState = StateRunning
	k.store.SetRunning(true)
	k.mu.Unlock()

	k.actorDone = make(chan struct{})
	go k.actorLoop()

	k.bus.Emit(eventbus.Event{Type: eventbus.TypeSystemStarted})
	k.log.Info("kernel started")
	return nil
}

// actorLoop is the single serialized control actor: every poll tick and
// every inbound agent event and every control command is processed here,
// one at a time, in arrival order.
func (k *Kernel) actorLoop() {
	defer close(k.actorDone)
	for {
		var checkinCh <-chan time.Time
		if k.checkinTick != nil {
			checkinCh = k.checkinTick.C
		}

		select {
		case <-k.pollTicker.C:
			k.tick()

		case <-checkinCh:
			k.statusCheckIn()

		case event := <-k.agentEvents:
			k.routeAgentEvent(event)

		case msg := <-k.controlCh:
			switch msg.kind {
			case ctrlPause:
				k.mu.Lock()
				k.runState = StatePaused
				k.store.SetPaused(true)
				k.mu.Unlock()
			case ctrlResume:
				k.mu.Lock()
				k.runState = StateRunning
				k.store.SetPaused(false)
				k.mu.Unlock()
			case ctrlStop:
				close(msg.done)
				return
			}
			if msg.done != nil && msg.kind != ctrlStop {
				close(msg.done)
			}
		}
	}
}

// tick implements the control-loop step (spec section 4.4).
func (k *Kernel) tick() {
	k.metrics.TicksTotal.Inc()

	k.mu.Lock()
	rs := k.runState
	budgetPaused := k.budgetWasStopping
	k.mu.Unlock()
	// A budget-induced pause keeps evaluating ShouldStop/auto-resume below
	// even though runState is Paused; any other Paused state (manual or
	// operator-initiated) still short-circuits here.
	if rs != StateRunning && !(rs == StatePaused && budgetPaused) {
		return
	}

	if k.spendMon.ShouldStop() {
		k.mu.Lock()
		wasStopping := k.budgetWasStopping
		k.budgetWasStopping = true
		k.runState = StatePaused
		k.store.SetPaused(true)
		k.mu.Unlock()
		if !wasStopping {
			k.breaker.TripBudgetExceeded("spend monitor hard stop")
			k.notifyAsync(func() { _, _ = k.notifier.SendMessage("", "Budget Exceeded: "+k.spendMon.FormatForSlack(), "") })
		}
		return
	}
	if budgetPaused {
		k.mu.Lock()
		k.budgetWasStopping = false
		k.runState = StateRunning
		k.store.SetPaused(false)
		k.mu.Unlock()
		k.breaker.Reset()
		k.notifyAsync(func() { _, _ = k.notifier.SendMessage("", "Budget back within limits, resuming.", "") })
	}

	if !k.breaker.Allow() {
		return
	}

	if k.Degraded() {
		if k.dbProbe == nil {
			return
		}
		err := k.dbMon.AttemptRecovery(func() error { return k.dbProbe(k.shutdownCtx) })
		if err != nil {
			return
		}
		k.mu.Lock()
		k.degraded = false
		k.mu.Unlock()
	}

	if !k.sched.CanSchedule() {
		return
	}

	result := k.sched.ScheduleNext("", k.admissibleFilter)
	for _, assignment := range result.Tasks {
		if k.agentLookup != nil && !k.agentLookup(assignment.SessionID) {
			k.log.Warn("scheduled session %s not found in agent runtime, reservation considered lost", assignment.SessionID)
			k.ledger.Release(assignment.Model, assignment.SessionID)
			continue
		}
		if k.prodMon.IsPaused(assignment.SessionID) {
			k.log.Warn("session %s is productivity-paused, refusing dispatch", assignment.SessionID)
			k.ledger.Release(assignment.Model, assignment.SessionID)
			continue
		}
		k.store.AddAgent(state.AgentRecord{
			SessionID: assignment.SessionID,
			TaskID:    assignment.TaskID,
			Model:     assignment.Model,
			Status:    state.StatusRunning,
			StartedAt: time.Now(),
		})
		k.bus.Emit(eventbus.Event{Type: eventbus.TypeTaskAssigned, Payload: assignment})
	}

	k.dbMon.OnDBSuccess()
}

func (k *Kernel) admissibleFilter(task scheduler.Task) bool {
	return k.gate.IsAdmissible(approval.Task{ID: task.ID, PriorityConfirmed: task.PriorityConfirmed})
}

func (k *Kernel) statusCheckIn() {
	k.log.Info("status: state=%s degraded=%v activeAgents=%d breaker=%s",
		k.State(), k.Degraded(), k.store.Count(""), k.breaker.State())
}

// SubmitAgentEvent enqueues an agent lifecycle event for processing on the
// kernel's control actor. Safe to call from any goroutine.
func (k *Kernel) SubmitAgentEvent(event AgentEvent) {
	k.agentEvents <- event
}

// routeAgentEvent applies the state transition table from spec section
// 4.4.
func (k *Kernel) routeAgentEvent(event AgentEvent) {
	switch event.Type {
	case AgentEventCompletion:
		k.onCompletion(event, true)
	case AgentEventError:
		k.onCompletion(event, false)
	case AgentEventBlocker:
		k.store.UpdateAgentStatus(event.SessionID, state.StatusBlocked, event.BlockerReason)
		k.bus.Emit(eventbus.Event{Type: eventbus.TypeAgentBlocked, Payload: event, CorrelationID: event.CorrelationID})
	case AgentEventQuestion:
		k.store.UpdateAgentStatus(event.SessionID, state.StatusBlocked, "")
		k.bus.Emit(eventbus.Event{Type: eventbus.TypeAgentQuestion, Payload: event, CorrelationID: event.CorrelationID})
	case AgentEventProgress:
		k.recordProductivityTokens(event)
	case AgentEventSubagentSpawn:
		if event.SessionID == "" || event.Model == "" {
			k.log.Debug("ignoring subagent_spawn without sessionId or model")
			return
		}
		k.store.AddAgent(state.AgentRecord{
			SessionID: event.SessionID,
			TaskID:    event.TaskID,
			Model:     event.Model,
			Status:    state.StatusRunning,
			StartedAt: time.Now(),
		})
		k.bus.Emit(eventbus.Event{Type: eventbus.TypeAgentSpawned, Payload: event, CorrelationID: event.CorrelationID})
	}
}

// recordProductivityTokens feeds an agent event's token usage and reported
// output counts into the productivity monitor's per-agent stall counter.
func (k *Kernel) recordProductivityTokens(event AgentEvent) {
	tokens := event.InputTokens + event.OutputTokens
	if tokens == 0 {
		tokens = event.TokensUsed
	}
	k.recordProductivityTokensAmount(event.SessionID, tokens, event.Outputs)
}

func (k *Kernel) recordProductivityTokensAmount(sessionID string, tokens int64, outputs productivity.OutputCounts) {
	if tokens == 0 && outputs == (productivity.OutputCounts{}) {
		return
	}
	k.prodMon.RecordTokens(sessionID, tokens, outputs)
}

func (k *Kernel) onCompletion(event AgentEvent, success bool) {
	rec, known := k.store.GetAgent(event.SessionID)
	if known {
		k.ledger.Release(rec.Model, event.SessionID)
		k.store.RemoveAgent(event.SessionID)
	}

	inputTokens, outputTokens := event.InputTokens, event.OutputTokens
	if inputTokens == 0 && outputTokens == 0 && event.TokensUsed > 0 {
		inputTokens = (event.TokensUsed * 30) / 100
		outputTokens = event.TokensUsed - inputTokens
	}
	costUSD := event.CostUSD
	if costUSD == 0 && (inputTokens > 0 || outputTokens > 0) {
		if derived, ok := pricing.Cost(event.Model, inputTokens, outputTokens); ok {
			costUSD = derived
		}
	}
	k.spendMon.RecordAgentCost(event.SessionID, event.TaskID, event.Model, inputTokens, outputTokens, costUSD)

	if k.usageLog != nil {
		if err := k.usageLog.Write(persistence.UsageEntry{
			SessionID: event.SessionID, TaskID: event.TaskID, Model: event.Model,
			InputTokens: inputTokens, OutputTokens: outputTokens, CostUSD: costUSD, At: time.Now(),
		}); err != nil {
			k.log.Warn("usage log write failed: %v", err)
		}
	}

	k.recordProductivityTokensAmount(event.SessionID, inputTokens+outputTokens, event.Outputs)
	k.prodMon.RecordAgentCompletion(success, event.DurationMs, event.Model)
	k.prodMon.Forget(event.SessionID)
	k.breaker.RecordAgentOutcome(event.SessionID, success)

	if success {
		k.metrics.AgentCompletions.Inc()
		k.bus.Emit(eventbus.Event{Type: eventbus.TypeAgentCompleted, Payload: event, CorrelationID: event.CorrelationID})
		k.bus.Emit(eventbus.Event{Type: eventbus.TypeTaskCompleted, Payload: event, CorrelationID: event.CorrelationID})
		return
	}

	k.metrics.AgentFailures.Inc()
	k.bus.Emit(eventbus.Event{Type: eventbus.TypeAgentFailed, Payload: event, CorrelationID: event.CorrelationID})

	if k.retro != nil && event.ProjectID != "" {
		go func(projectID, taskID string) {
			defer func() { _ = recover() }()
			if err := k.retro(projectID, taskID); err != nil {
				k.log.Debug("retrospective trigger skipped for project %s: %v", projectID, err)
			}
		}(event.ProjectID, event.TaskID)
	}
}

// Pause sets the paused flag; ticks become a no-op but agent event
// processing continues uninterrupted.
func (k *Kernel) Pause() {
	k.sendControl(ctrlPause)
}

// Resume clears the paused flag.
func (k *Kernel) Resume() {
	k.sendControl(ctrlResume)
}

func (k *Kernel) sendControl(kind controlMsgKind) {
	done := make(chan struct{})
	k.controlCh <- controlMsg{kind: kind, done: done}
	<-done
}

// Stop runs the graceful shutdown sequence (spec section 4.4): mark
// shutting down, stop timers, drain active agents up to the configured
// timeout, persist state, and notify.
func (k *Kernel) Stop(ctx context.Context) error {
	k.mu.Lock()
	if k.runState == StateStopped || k.runState == StateStopping {
		k.mu.Unlock()
		return nil
	}
	k.runState = StateStopping
	k.mu.Unlock()

	if k.pollTicker != nil {
		k.pollTicker.Stop()
	}
	if k.checkinTick != nil {
		k.checkinTick.Stop()
	}

	deadline := time.Duration(k.cfg.GracefulShutdownTimeoutMs) * time.Millisecond
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	drainCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	k.drainActiveAgents(drainCtx)

	done := make(chan struct{})
	k.controlCh <- controlMsg{kind: ctrlStop, done: done}
	<-done
	<-k.actorDone

	if k.shutdownFn != nil {
		k.shutdownFn()
	}

	if k.cfg.StatePath != "" {
		k.mu.Lock()
		k.store.SetRunning(false)
		k.mu.Unlock()
		if err := persistence.SaveState(k.cfg.StatePath, k.store.Snapshot()); err != nil {
			k.log.Warn("failed to persist final state: %v", err)
		}
	}

	if k.usageLog != nil {
		if err := k.usageLog.Close(); err != nil {
			k.log.Warn("failed to close usage log: %v", err)
		}
	}

	k.bus.Emit(eventbus.Event{Type: eventbus.TypeSystemStopped})

	k.mu.Lock()
	k.runState = StateStopped
	k.mu.Unlock()
	k.log.Info("kernel stopped")
	return nil
}

func (k *Kernel) drainActiveAgents(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if k.store.Count("") == 0 {
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			k.log.Warn("graceful shutdown timeout with %d agents still active", k.store.Count(""))
			return
		}
	}
}

// RunPreflight executes the pre-flight checker against snap and, if
// required, blocks up to timeout for an external confirmation callback to
// approve or reject. Returns the results and whether startup may proceed.
func (k *Kernel) RunPreflight(cfg preflight.Config, snap preflight.BacklogSnapshot, requireConfirmation bool, confirm func(preflight.Results) bool, timeout time.Duration) (preflight.Results, bool) {
	results := preflight.Run(cfg, snap)
	if !requireConfirmation {
		return results, true
	}
	if confirm == nil {
		return results, false
	}

	type outcome struct{ approved bool }
	ch := make(chan outcome, 1)
	go func() {
		defer func() { _ = recover() }()
		ch <- outcome{approved: confirm(results)}
	}()

	select {
	case o := <-ch:
		return results, o.approved
	case <-time.After(timeout):
		return results, false
	}
}

// --- callbacks wired into the subsystems ---

func (k *Kernel) onBreakerTrip(reason breaker.Reason, message string) {
	k.bus.Emit(eventbus.Event{Type: eventbus.TypeSystemError, Payload: eventbus.ErrorPayload{
		Component: "circuit-breaker", Err: fmt.Errorf("%s: %s", reason, message),
	}})
}

func (k *Kernel) onSpendAlert(kind spend.AlertKind, percentage float64, current, budget float64) {
	k.notifyAsync(func() {
		_, _ = k.notifier.SendMessage("", fmt.Sprintf("Spend alert %s: %.0f%% of budget ($%.2f / $%.2f)", kind, percentage*100, current, budget), "")
	})
}

func (k *Kernel) onProductivityAlert(sessionID string, level productivity.AlertLevel, tokens int64) {
	k.notifyAsync(func() {
		_, _ = k.notifier.SendMessage("", fmt.Sprintf("Productivity %s for session %s: %d tokens without output", level, sessionID, tokens), "")
	})

	if level != productivity.AlertCritical {
		return
	}

	if k.prodMon.IsPaused(sessionID) {
		k.store.UpdateAgentStatus(sessionID, state.StatusPaused, "productivity: tokens without meaningful output")
		k.bus.Emit(eventbus.Event{Type: eventbus.TypeAgentPaused, Payload: sessionID})
	}

	if k.tokenStallLimit > 0 && tokens >= k.tokenStallLimit {
		k.breaker.TripTokenStall(fmt.Sprintf("session %s reached %d tokens without meaningful output", sessionID, tokens))
	}
}

func (k *Kernel) onDBDegraded(lastErr error) {
	k.mu.Lock()
	k.degraded = true
	k.mu.Unlock()
	k.metrics.DBDegradedTotal.Inc()
	k.bus.Emit(eventbus.Event{Type: eventbus.TypeDatabaseDegraded, Payload: lastErr})
}

func (k *Kernel) onDBRecovered(downtime time.Duration) {
	k.bus.Emit(eventbus.Event{Type: eventbus.TypeDatabaseRecovered, Payload: downtime})
}

func (k *Kernel) onDBHealthy(latency time.Duration) {
	k.bus.Emit(eventbus.Event{Type: eventbus.TypeDatabaseHealthy, Payload: latency})
}

func (k *Kernel) sendApprovalRequest(task approval.Task, message string) {
	if _, err := k.notifier.SendApprovalRequest(task.ID, message); err != nil {
		k.log.Warn("sendApprovalRequest failed for task %s: %v", task.ID, err)
	}
}

func (k *Kernel) onApprovalDecision(entry approval.Entry) {
	k.bus.Emit(eventbus.Event{Type: eventbus.TypeSlackResponseSent, Payload: entry})
}

// HandleApprovalResponse forwards an external confirmation decision to the
// approval gate.
func (k *Kernel) HandleApprovalResponse(taskID string, approved bool, respondedBy, reason string) {
	k.gate.HandleResponse(taskID, approved, respondedBy, reason)
}

func (k *Kernel) notifyAsync(fn func()) {
	go func() {
		defer func() { _ = recover() }()
		fn()
	}()
}
