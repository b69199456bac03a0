// Package httpapi exposes the kernel's HTTP surface: GET /healthz (a
// status snapshot) and GET /metrics (Prometheus exposition). Grounded on
// the teacher's handlers/health.go trivial GET-only handler, generalized
// to return a JSON status body and to mount the Prometheus handler
// alongside it.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trafficcontrol/internal/metrics"
)

// StatusProvider supplies the live snapshot rendered by /healthz. The
// kernel implements this interface.
type StatusProvider interface {
	HealthStatus() Status
}

// Status is the JSON body served at /healthz.
type Status struct {
	State         string `json:"state"`
	Degraded      bool   `json:"degraded"`
	ActiveAgents  int    `json:"activeAgents"`
	BreakerState  string `json:"breakerState"`
	DailySpendUSD float64 `json:"dailySpendUsd"`
}

// NewMux builds the HTTP surface. reg may be nil, in which case /metrics
// is not mounted.
func NewMux(provider StatusProvider, reg *metrics.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider.HealthStatus()); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))
	}

	return mux
}
