// Package metrics exports the kernel's live state as Prometheus gauges and
// counters over /metrics. Grounded on the teacher's pkg/metrics, which
// queries an external Prometheus server for LLM call cost/token data; this
// module instead runs as the exporter itself, since there is no external
// Prometheus server in scope, repurposing the same client_golang
// dependency to expose capacity, spend, breaker, and active-agent gauges
// first-hand.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every kernel metric under one Prometheus registerer.
type Registry struct {
	reg *prometheus.Registry

	CapacityCurrent *prometheus.GaugeVec
	CapacityLimit   *prometheus.GaugeVec

	SpendDailyUSD  prometheus.Gauge
	SpendWeeklyUSD prometheus.Gauge

	BreakerState *prometheus.GaugeVec // one gauge per state name, value 1 for the active state

	ActiveAgents *prometheus.GaugeVec // labeled by model

	TicksTotal        prometheus.Counter
	AgentCompletions  prometheus.Counter
	AgentFailures     prometheus.Counter
	DBDegradedTotal   prometheus.Counter
}

// NewRegistry constructs and registers every kernel metric on a fresh
// Prometheus registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		CapacityCurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficcontrol", Name: "capacity_current", Help: "Currently reserved capacity slots per model.",
		}, []string{"model"}),
		CapacityLimit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficcontrol", Name: "capacity_limit", Help: "Configured capacity limit per model.",
		}, []string{"model"}),
		SpendDailyUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trafficcontrol", Name: "spend_daily_usd", Help: "Total spend recorded today in USD.",
		}),
		SpendWeeklyUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trafficcontrol", Name: "spend_weekly_usd", Help: "Total spend recorded this ISO week in USD.",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficcontrol", Name: "breaker_state", Help: "1 for the circuit breaker's current state, 0 otherwise.",
		}, []string{"state"}),
		ActiveAgents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficcontrol", Name: "active_agents", Help: "Number of active agent sessions per model.",
		}, []string{"model"}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafficcontrol", Name: "ticks_total", Help: "Total number of kernel ticks executed.",
		}),
		AgentCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafficcontrol", Name: "agent_completions_total", Help: "Total agent completion events processed.",
		}),
		AgentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafficcontrol", Name: "agent_failures_total", Help: "Total agent error events processed.",
		}),
		DBDegradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trafficcontrol", Name: "db_degraded_total", Help: "Total number of times the database health monitor entered degraded mode.",
		}),
	}

	reg.MustRegister(
		r.CapacityCurrent, r.CapacityLimit, r.SpendDailyUSD, r.SpendWeeklyUSD,
		r.BreakerState, r.ActiveAgents, r.TicksTotal, r.AgentCompletions,
		r.AgentFailures, r.DBDegradedTotal,
	)
	return r
}

// Gatherer exposes the underlying *prometheus.Registry for the HTTP
// handler to serve.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// SetBreakerState zeroes every known state gauge then sets active to 1,
// so exactly one state label reads 1 at a time.
func (r *Registry) SetBreakerState(active string, known []string) {
	for _, s := range known {
		r.BreakerState.WithLabelValues(s).Set(0)
	}
	r.BreakerState.WithLabelValues(active).Set(1)
}
