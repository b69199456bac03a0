package preflight

import "testing"

func TestRunAllChecksPass(t *testing.T) {
	results := Run(Config{MaxQueueDepthWarning: 100, MaxCostWarningUSD: 50}, BacklogSnapshot{
		QueueDepth:       5,
		EstimatedCostUSD: 10,
	})
	if !results.Passed {
		t.Fatalf("expected all checks to pass, got %+v", results.Checks)
	}
}

func TestRunFlagsElevatedLimitsAndQueueDepth(t *testing.T) {
	results := Run(Config{MaxQueueDepthWarning: 10}, BacklogSnapshot{
		QueueDepth:          50,
		ElevatedModelLimits: map[string]int{"opus": 20},
	})
	if results.Passed {
		t.Fatal("expected overall failure when queue depth and elevated limits are flagged")
	}

	var sawQueueDepth, sawElevated bool
	for _, c := range results.Checks {
		if c.Check == CheckQueueDepth && !c.Passed {
			sawQueueDepth = true
		}
		if c.Check == CheckElevatedLimits && !c.Passed {
			sawElevated = true
		}
	}
	if !sawQueueDepth || !sawElevated {
		t.Fatalf("expected both queue_depth and elevated_model_limits checks to fail, got %+v", results.Checks)
	}
}
