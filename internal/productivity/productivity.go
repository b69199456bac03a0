// Package productivity implements the Productivity Monitor: per-agent
// token-without-output detection with two severity levels, and per-task
// outcome stats including a consecutive-failure streak. Grounded on the
// teacher's rolling-window counter style in pkg/agent/middleware/resilience.
package productivity

import (
	"strconv"
	"sync"
	"time"
)

// OutputCounts tallies agent-reported artifacts that count as "meaningful
// output" and reset the stall counter.
type OutputCounts struct {
	FilesModified  int
	TestsRun       int
	TestsPassed    int
	CommitsCreated int
	TasksCompleted int
	ToolCalls      int
}

// hasMeaningfulOutput reports whether any field indicates an artifact that
// resets the productivity counter. Per the spec's open question, a failing
// test run does not count: TestsRun alone is not sufficient, only
// TestsPassed is.
func (c OutputCounts) hasMeaningfulOutput() bool {
	return c.FilesModified > 0 || c.TestsPassed > 0 || c.CommitsCreated > 0 || c.TasksCompleted > 0
}

// AgentState is the live productivity ledger entry for one agent.
type AgentState struct {
	TokensConsumed   int64
	Outputs          OutputCounts
	LastOutputAt     time.Time
	WarningIssuedAt  time.Time
	CriticalIssuedAt time.Time
	Paused           bool
}

// TaskOutcome is a terminal per-task record.
type TaskOutcome struct {
	Success    bool
	DurationMs int64
	Model      string
}

// AlertLevel distinguishes warning from critical stall alerts.
type AlertLevel string

// Alert levels.
const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// OnAlert fires when an agent crosses a stall threshold, debounced by
// AlertCooldown.
type OnAlert func(sessionID string, level AlertLevel, tokensWithoutOutput int64)

// Config parameterizes thresholds.
type Config struct {
	WarningThreshold  int64 // tokens without meaningful output
	CriticalThreshold int64 // defaults to 2x warning if zero
	AlertCooldown     time.Duration
	AutoPauseCritical bool
}

// Monitor tracks per-agent productivity and per-task outcomes. Safe for
// concurrent use.
type Monitor struct {
	mu      sync.Mutex
	cfg     Config
	onAlert OnAlert

	agents map[string]*AgentState

	outcomes              []TaskOutcome
	consecutiveFailures   int
	healthyStreak         int
}

// New returns an empty Monitor.
func New(cfg Config, onAlert OnAlert) *Monitor {
	if cfg.CriticalThreshold == 0 {
		cfg.CriticalThreshold = cfg.WarningThreshold * 2
	}
	return &Monitor{cfg: cfg, onAlert: onAlert, agents: make(map[string]*AgentState)}
}

func (m *Monitor) stateLocked(sessionID string) *AgentState {
	s, ok := m.agents[sessionID]
	if !ok {
		s = &AgentState{LastOutputAt: time.Now()}
		m.agents[sessionID] = s
	}
	return s
}

// RecordTokens adds tokens consumed by sessionID, accompanied by whatever
// output the agent reported alongside them. Meaningful output resets the
// tokens-without-output counter and clears issued alert timestamps.
func (m *Monitor) RecordTokens(sessionID string, tokens int64, outputs OutputCounts) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stateLocked(sessionID)
	s.TokensConsumed += tokens
	s.Outputs.FilesModified += outputs.FilesModified
	s.Outputs.TestsRun += outputs.TestsRun
	s.Outputs.TestsPassed += outputs.TestsPassed
	s.Outputs.CommitsCreated += outputs.CommitsCreated
	s.Outputs.TasksCompleted += outputs.TasksCompleted
	s.Outputs.ToolCalls += outputs.ToolCalls

	if outputs.hasMeaningfulOutput() {
		s.LastOutputAt = time.Now()
		s.TokensConsumed = 0
		s.WarningIssuedAt = time.Time{}
		s.CriticalIssuedAt = time.Time{}
		return
	}

	m.evaluateStallLocked(sessionID, s)
}

func (m *Monitor) evaluateStallLocked(sessionID string, s *AgentState) {
	now := time.Now()
	cooledDown := func(last time.Time) bool {
		return last.IsZero() || now.Sub(last) >= m.cfg.AlertCooldown
	}

	if m.cfg.CriticalThreshold > 0 && s.TokensConsumed >= m.cfg.CriticalThreshold && cooledDown(s.CriticalIssuedAt) {
		s.CriticalIssuedAt = now
		if m.cfg.AutoPauseCritical {
			s.Paused = true
		}
		m.fireAlert(sessionID, AlertCritical, s.TokensConsumed)
		return
	}
	if m.cfg.WarningThreshold > 0 && s.TokensConsumed >= m.cfg.WarningThreshold && cooledDown(s.WarningIssuedAt) {
		s.WarningIssuedAt = now
		m.fireAlert(sessionID, AlertWarning, s.TokensConsumed)
	}
}

func (m *Monitor) fireAlert(sessionID string, level AlertLevel, tokens int64) {
	if m.onAlert == nil {
		return
	}
	go func() {
		defer func() { _ = recover() }()
		m.onAlert(sessionID, level, tokens)
	}()
}

// IsPaused reports whether sessionID was auto-paused by a critical stall.
func (m *Monitor) IsPaused(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.agents[sessionID]
	return ok && s.Paused
}

// Forget removes sessionID's live state, called on agent completion or
// error.
func (m *Monitor) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.agents, sessionID)
}

// RecordAgentCompletion records a terminal outcome for a task, updating
// the consecutive-failure streak surfaced to the kernel.
func (m *Monitor) RecordAgentCompletion(success bool, durationMs int64, model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, TaskOutcome{Success: success, DurationMs: durationMs, Model: model})
	if success {
		m.consecutiveFailures = 0
		m.healthyStreak++
	} else {
		m.consecutiveFailures++
		m.healthyStreak = 0
	}
}

// ConsecutiveFailures returns the current consecutive-task-failure streak.
func (m *Monitor) ConsecutiveFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveFailures
}

// SuccessRate returns the fraction of recorded outcomes that succeeded (0
// if none recorded).
func (m *Monitor) SuccessRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.outcomes) == 0 {
		return 0
	}
	succ := 0
	for _, o := range m.outcomes {
		if o.Success {
			succ++
		}
	}
	return float64(succ) / float64(len(m.outcomes))
}

// FormatForSlack renders a human-readable productivity summary.
func (m *Monitor) FormatForSlack() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	succ := 0
	for _, o := range m.outcomes {
		if o.Success {
			succ++
		}
	}
	return "Productivity summary:\n" +
		"  Tasks completed: " + strconv.Itoa(len(m.outcomes)) + "\n" +
		"  Successes: " + strconv.Itoa(succ) + "\n" +
		"  Consecutive failures: " + strconv.Itoa(m.consecutiveFailures)
}
