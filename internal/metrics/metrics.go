// Package metrics holds the control plane's ambient Prometheus
// instrumentation: backend state gauges, probe latency, and dispatch
// counters. Base spec §ambient stack calls for structured
// observability alongside logging; this is its metrics half.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

var (
	backendState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "llf",
		Subsystem: "supervisor",
		Name:      "backend_state",
		Help:      "Current lifecycle state of a supervised backend, one gauge per (backend, state) pair set to 1 for the active state and 0 otherwise.",
	}, []string{"backend", "state"})

	probeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "llf",
		Subsystem: "health",
		Name:      "probe_duration_seconds",
		Help:      "Latency of a single backend readiness probe.",
		Buckets:   prometheus.DefBuckets,
	})

	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llf",
		Subsystem: "dispatch",
		Name:      "tool_calls_total",
		Help:      "Total tool invocations processed by the dispatcher, by tool name and outcome.",
	}, []string{"tool", "outcome"})
)

// allStates lists every ProcessState so SetBackendState can zero out the
// states a backend is no longer in, keeping exactly one gauge at 1 per
// backend at any time.
var allStates = []models.ProcessState{
	models.StateStopped,
	models.StateStarting,
	models.StateReady,
	models.StateDegraded,
	models.StateStopping,
	models.StateAdopted,
}

// SetBackendState records backend's current lifecycle state.
func SetBackendState(backend string, state models.ProcessState) {
	for _, s := range allStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		backendState.WithLabelValues(backend, string(s)).Set(value)
	}
}

// ObserveProbeLatency records how long a single health probe took.
func ObserveProbeLatency(d time.Duration) {
	probeLatency.Observe(d.Seconds())
}

// IncDispatch records one tool invocation outcome ("success", "failure", or
// "timeout").
func IncDispatch(tool, outcome string) {
	dispatchTotal.WithLabelValues(tool, outcome).Inc()
}

// Handler returns the HTTP handler serving the default Prometheus registry.
// No command in cmd/llf mounts it.
func Handler() http.Handler {
	return promhttp.Handler()
}
