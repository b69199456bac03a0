package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCapacityGaugesReportSetValues(t *testing.T) {
	r := NewRegistry()
	r.CapacityCurrent.WithLabelValues("sonnet").Set(3)
	r.CapacityLimit.WithLabelValues("sonnet").Set(5)

	if got := testutil.ToFloat64(r.CapacityCurrent.WithLabelValues("sonnet")); got != 3 {
		t.Fatalf("expected current 3, got %v", got)
	}
	if got := testutil.ToFloat64(r.CapacityLimit.WithLabelValues("sonnet")); got != 5 {
		t.Fatalf("expected limit 5, got %v", got)
	}
}

func TestSetBreakerStateExclusivity(t *testing.T) {
	r := NewRegistry()
	known := []string{"closed", "open", "half_open"}
	r.SetBreakerState("open", known)

	if got := testutil.ToFloat64(r.BreakerState.WithLabelValues("open")); got != 1 {
		t.Fatalf("expected open=1, got %v", got)
	}
	if got := testutil.ToFloat64(r.BreakerState.WithLabelValues("closed")); got != 0 {
		t.Fatalf("expected closed=0, got %v", got)
	}
	if got := testutil.ToFloat64(r.BreakerState.WithLabelValues("half_open")); got != 0 {
		t.Fatalf("expected half_open=0, got %v", got)
	}
}

func TestGathererExposesRegisteredMetrics(t *testing.T) {
	r := NewRegistry()
	r.TicksTotal.Add(4)

	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var found bool
	for _, fam := range families {
		if strings.Contains(fam.GetName(), "ticks_total") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected ticks_total metric family to be gathered")
	}
}
