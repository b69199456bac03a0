package spend

import "testing"

func TestDailyBudgetHardStop(t *testing.T) {
	m := New(Config{DailyBudgetUSD: 1.0, HardStopAtLimit: true, WarningPercent: 0.75, CriticalPercent: 0.9}, nil)

	m.RecordAgentCost("s1", "t1", "sonnet", 100, 200, 0.4)
	if m.ShouldStop() {
		t.Fatal("should not stop before reaching budget")
	}
	m.RecordAgentCost("s2", "t2", "sonnet", 100, 200, 0.4)
	if m.ShouldStop() {
		t.Fatal("should not stop at 0.8 of a $1 budget")
	}
	m.RecordAgentCost("s3", "t3", "sonnet", 100, 200, 0.3)
	if !m.ShouldStop() {
		t.Fatal("expected hard stop once daily spend reaches budget")
	}
}

func TestShouldStopFalseWithoutHardStopFlag(t *testing.T) {
	m := New(Config{DailyBudgetUSD: 1.0, HardStopAtLimit: false}, nil)
	m.RecordAgentCost("s1", "t1", "sonnet", 0, 0, 5.0)
	if m.ShouldStop() {
		t.Fatal("should never stop when HardStopAtLimit is false")
	}
}

func TestRecordAgentCostDerivesCostFromPricingTableWhenZero(t *testing.T) {
	m := New(Config{}, nil)
	m.RecordAgentCost("s1", "t1", "sonnet", 1_000_000, 1_000_000, 0)
	if got := m.DailySpend(); got != 18.00 {
		t.Fatalf("expected derived cost 18.00 from the pricing table, got %v", got)
	}
}

func TestRecordAgentCostLeavesUnpricedModelAtZero(t *testing.T) {
	m := New(Config{}, nil)
	m.RecordAgentCost("s1", "t1", "some-future-model", 1_000_000, 1_000_000, 0)
	if got := m.DailySpend(); got != 0 {
		t.Fatalf("expected zero cost for an unpriced model, got %v", got)
	}
}

func TestAlertFiresOncePerThresholdCrossing(t *testing.T) {
	ch := make(chan struct{}, 10)
	m := New(Config{DailyBudgetUSD: 1.0, WarningPercent: 0.5, CriticalPercent: 0.9}, func(kind AlertKind, pct, cur, budget float64) {
		ch <- struct{}{}
	})

	m.RecordAgentCost("s1", "t1", "sonnet", 0, 0, 0.6)
	<-ch // warning

	m.RecordAgentCost("s2", "t2", "sonnet", 0, 0, 0.05)
	select {
	case <-ch:
		t.Fatal("warning should not refire within the same window")
	default:
	}
}
