// Package preflight implements the one-shot startup validation pass over
// the current backlog, directly grounded on the teacher's
// pkg/preflight.Run/CheckResult/Results shape.
package preflight

import (
	"fmt"
)

// CheckName identifies a single pre-flight check.
type CheckName string

// Checks run at startup.
const (
	CheckQueueDepth         CheckName = "queue_depth"
	CheckTestDataPattern    CheckName = "test_data_pattern"
	CheckMissingEstimate    CheckName = "missing_estimate"
	CheckUnconfirmedPriority CheckName = "unconfirmed_priority"
	CheckElevatedLimits     CheckName = "elevated_model_limits"
	CheckCostEstimate       CheckName = "cost_estimate"
)

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Check   CheckName
	Passed  bool
	Message string
	Error   error
}

// Results aggregates every check's outcome.
type Results struct {
	Summary string
	Checks  []CheckResult
	Passed  bool
}

// BacklogSnapshot is the minimal view of backlog and config state the
// checks need; the backlog persistence backend itself is out of scope.
type BacklogSnapshot struct {
	QueueDepth            int
	TestDataTaskCount      int
	MissingEstimateCount   int
	UnconfirmedPriorityCount int
	ModelLimits            map[string]int
	ElevatedModelLimits    map[string]int // limits considered "elevated" beyond normal defaults
	EstimatedCostUSD       float64
}

// Config parameterizes warning thresholds.
type Config struct {
	MaxQueueDepthWarning int
	MaxCostWarningUSD    float64
}

// Run executes every check against snap and returns the aggregated
// Results. No individual check failing is fatal; Results.Passed is false
// only if any check reports Passed=false.
func Run(cfg Config, snap BacklogSnapshot) Results {
	checks := []CheckResult{
		checkQueueDepth(cfg, snap),
		checkTestDataPattern(snap),
		checkMissingEstimate(snap),
		checkUnconfirmedPriority(snap),
		checkElevatedLimits(snap),
		checkCostEstimate(cfg, snap),
	}

	passed := true
	warnings := 0
	for _, c := range checks {
		if !c.Passed {
			passed = false
			warnings++
		}
	}

	summary := fmt.Sprintf("%d/%d checks passed", len(checks)-warnings, len(checks))
	return Results{Summary: summary, Checks: checks, Passed: passed}
}

func checkQueueDepth(cfg Config, snap BacklogSnapshot) CheckResult {
	if cfg.MaxQueueDepthWarning > 0 && snap.QueueDepth > cfg.MaxQueueDepthWarning {
		return CheckResult{Check: CheckQueueDepth, Passed: false,
			Message: fmt.Sprintf("queue depth %d exceeds warning threshold %d", snap.QueueDepth, cfg.MaxQueueDepthWarning)}
	}
	return CheckResult{Check: CheckQueueDepth, Passed: true, Message: fmt.Sprintf("queue depth %d", snap.QueueDepth)}
}

func checkTestDataPattern(snap BacklogSnapshot) CheckResult {
	if snap.TestDataTaskCount > 0 {
		return CheckResult{Check: CheckTestDataPattern, Passed: false,
			Message: fmt.Sprintf("%d tasks look like test data", snap.TestDataTaskCount)}
	}
	return CheckResult{Check: CheckTestDataPattern, Passed: true, Message: "no test-data tasks detected"}
}

func checkMissingEstimate(snap BacklogSnapshot) CheckResult {
	if snap.MissingEstimateCount > 0 {
		return CheckResult{Check: CheckMissingEstimate, Passed: false,
			Message: fmt.Sprintf("%d tasks missing a cost/time estimate", snap.MissingEstimateCount)}
	}
	return CheckResult{Check: CheckMissingEstimate, Passed: true, Message: "all tasks estimated"}
}

func checkUnconfirmedPriority(snap BacklogSnapshot) CheckResult {
	if snap.UnconfirmedPriorityCount > 0 {
		return CheckResult{Check: CheckUnconfirmedPriority, Passed: false,
			Message: fmt.Sprintf("%d tasks have unconfirmed priority", snap.UnconfirmedPriorityCount)}
	}
	return CheckResult{Check: CheckUnconfirmedPriority, Passed: true, Message: "all priorities confirmed"}
}

func checkElevatedLimits(snap BacklogSnapshot) CheckResult {
	if len(snap.ElevatedModelLimits) > 0 {
		return CheckResult{Check: CheckElevatedLimits, Passed: false,
			Message: fmt.Sprintf("%d model limits are elevated above defaults", len(snap.ElevatedModelLimits))}
	}
	return CheckResult{Check: CheckElevatedLimits, Passed: true, Message: "model limits at defaults"}
}

func checkCostEstimate(cfg Config, snap BacklogSnapshot) CheckResult {
	if cfg.MaxCostWarningUSD > 0 && snap.EstimatedCostUSD > cfg.MaxCostWarningUSD {
		return CheckResult{Check: CheckCostEstimate, Passed: false,
			Message: fmt.Sprintf("estimated cost $%.2f exceeds warning threshold $%.2f", snap.EstimatedCostUSD, cfg.MaxCostWarningUSD)}
	}
	return CheckResult{Check: CheckCostEstimate, Passed: true,
		Message: fmt.Sprintf("estimated cost $%.2f", snap.EstimatedCostUSD)}
}
