// Package spend implements the Spend Monitor: per-model cost accumulation
// with rolling daily/weekly windows, threshold alerting, and hard-stop
// evaluation. Grounded on the teacher's pkg/limiter budget-reservation
// bookkeeping, adapted from a gate-before-spend token bucket into a
// record-after-spend ledger since the kernel bills cost only after an
// agent reports it.
package spend

import (
	"fmt"
	"sync"
	"time"

	"trafficcontrol/internal/pricing"
)

// Entry is one append-only spend record.
type Entry struct {
	SessionID    string
	TaskID       string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	At           time.Time
}

// AlertKind names a threshold crossing.
type AlertKind string

// Alert kinds.
const (
	AlertDailyWarning  AlertKind = "daily_warning"
	AlertDailyCritical AlertKind = "daily_critical"
	AlertWeeklyWarning AlertKind = "weekly_warning"
	AlertWeeklyCritical AlertKind = "weekly_critical"
)

// OnAlert fires at most once per threshold crossing per window.
type OnAlert func(kind AlertKind, percentage float64, currentSpend, budget float64)

// Config parameterizes budgets and thresholds. A zero budget disables that
// window's checks.
type Config struct {
	DailyBudgetUSD    float64
	WeeklyBudgetUSD   float64
	WarningPercent    float64 // e.g. 0.75
	CriticalPercent   float64 // e.g. 0.9
	HardStopAtLimit   bool
}

// Monitor tracks spend and evaluates thresholds. Safe for concurrent use.
type Monitor struct {
	mu      sync.Mutex
	cfg     Config
	onAlert OnAlert

	entries []Entry

	dailyWarned    map[string]bool // keyed by date string
	dailyCritical  map[string]bool
	weeklyWarned   map[string]bool // keyed by ISO week string
	weeklyCritical map[string]bool
}

// New returns an empty Monitor.
func New(cfg Config, onAlert OnAlert) *Monitor {
	return &Monitor{
		cfg:            cfg,
		onAlert:        onAlert,
		dailyWarned:    make(map[string]bool),
		dailyCritical:  make(map[string]bool),
		weeklyWarned:   make(map[string]bool),
		weeklyCritical: make(map[string]bool),
	}
}

// RecordAgentCost appends a spend entry and evaluates thresholds. When
// costUSD is zero and token counts are non-zero, the pricing table is
// consulted to derive it; an unpriced model leaves cost at zero rather than
// failing the call.
func (m *Monitor) RecordAgentCost(sessionID, taskID, model string, inputTokens, outputTokens int64, costUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if costUSD == 0 && (inputTokens > 0 || outputTokens > 0) {
		if derived, ok := pricing.Cost(model, inputTokens, outputTokens); ok {
			costUSD = derived
		}
	}

	m.entries = append(m.entries, Entry{
		SessionID: sessionID, TaskID: taskID, Model: model,
		InputTokens: inputTokens, OutputTokens: outputTokens, CostUSD: costUSD,
		At: time.Now(),
	})

	m.evaluateLocked()
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func weekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// DailySpend returns total cost recorded today (UTC calendar day).
func (m *Monitor) DailySpend() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.windowSpendLocked(dayKey, dayKey(time.Now()))
}

// WeeklySpend returns total cost recorded in the current ISO week.
func (m *Monitor) WeeklySpend() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.windowSpendLocked(weekKey, weekKey(time.Now()))
}

func (m *Monitor) windowSpendLocked(keyFn func(time.Time) string, key string) float64 {
	var total float64
	for _, e := range m.entries {
		if keyFn(e.At) == key {
			total += e.CostUSD
		}
	}
	return total
}

func (m *Monitor) evaluateLocked() {
	now := time.Now()
	dKey := dayKey(now)
	wKey := weekKey(now)

	daily := m.windowSpendLocked(dayKey, dKey)
	weekly := m.windowSpendLocked(weekKey, wKey)

	m.checkThresholdLocked(dKey, m.dailyCritical, m.cfg.DailyBudgetUSD, m.cfg.CriticalPercent, daily, AlertDailyCritical)
	m.checkThresholdLocked(dKey, m.dailyWarned, m.cfg.DailyBudgetUSD, m.cfg.WarningPercent, daily, AlertDailyWarning)
	m.checkThresholdLocked(wKey, m.weeklyCritical, m.cfg.WeeklyBudgetUSD, m.cfg.CriticalPercent, weekly, AlertWeeklyCritical)
	m.checkThresholdLocked(wKey, m.weeklyWarned, m.cfg.WeeklyBudgetUSD, m.cfg.WarningPercent, weekly, AlertWeeklyWarning)
}

func (m *Monitor) checkThresholdLocked(key string, fired map[string]bool, budget, percent, current float64, kind AlertKind) {
	if budget <= 0 || percent <= 0 || fired[key] {
		return
	}
	if current/budget >= percent {
		fired[key] = true
		if m.onAlert != nil {
			go func() {
				defer func() { _ = recover() }()
				m.onAlert(kind, current/budget, current, budget)
			}()
		}
	}
}

// ShouldStop reports whether hard-stop conditions are met: HardStopAtLimit
// is enabled and either the daily or weekly spend has reached its budget.
func (m *Monitor) ShouldStop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cfg.HardStopAtLimit {
		return false
	}
	now := time.Now()
	if m.cfg.DailyBudgetUSD > 0 && m.windowSpendLocked(dayKey, dayKey(now)) >= m.cfg.DailyBudgetUSD {
		return true
	}
	if m.cfg.WeeklyBudgetUSD > 0 && m.windowSpendLocked(weekKey, weekKey(now)) >= m.cfg.WeeklyBudgetUSD {
		return true
	}
	return false
}

// FormatForSlack renders a multi-line human-readable summary.
func (m *Monitor) FormatForSlack() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	daily := m.windowSpendLocked(dayKey, dayKey(now))
	weekly := m.windowSpendLocked(weekKey, weekKey(now))
	return fmt.Sprintf("Spend summary:\n  Daily:  $%.2f / $%.2f\n  Weekly: $%.2f / $%.2f",
		daily, m.cfg.DailyBudgetUSD, weekly, m.cfg.WeeklyBudgetUSD)
}
