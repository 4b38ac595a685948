// Package metrics exposes the daemon's own operational metrics via
// prometheus/client_golang, adapted from the pack's
// PrometheusProvider pattern (99souls-ariadne's
// engine/telemetry/metrics/prometheus.go) but narrowed to a fixed,
// known-at-startup metric set rather than a generic dynamic registry —
// the daemon always emits the same handful of gauges/counters, so
// there is no need for that package's on-demand
// register-or-look-up-existing machinery.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the daemon's fixed set of self-observability
// instruments.
type Metrics struct {
	reg *prometheus.Registry

	EmoesRunning   prometheus.Gauge
	CpusAvailable  prometheus.Gauge
	CpusTotal      prometheus.Gauge
	StartsTotal    *prometheus.CounterVec
	StopsTotal     prometheus.Counter
	StartFailures  prometheus.Counter
	ClientSessions prometheus.Gauge
	AgentSessions  prometheus.Gauge
}

// New builds a Metrics registered against a fresh, private registry
// (not the global default one), matching the pack's preference for an
// explicit registry over package-level global state.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		EmoesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "emexd", Name: "emoes_running", Help: "number of emoes currently tracked by the daemon",
		}),
		CpusAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "emexd", Name: "cpus_available", Help: "cpus not currently allocated to any emoe",
		}),
		CpusTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "emexd", Name: "cpus_total", Help: "total cpus in the daemon's resource pool",
		}),
		StartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emexd", Name: "starts_total", Help: "emoe start attempts, by outcome",
		}, []string{"outcome"}),
		StopsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emexd", Name: "stops_total", Help: "emoes torn down",
		}),
		StartFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emexd", Name: "start_failures_total", Help: "emoes that exhausted their container start retry budget",
		}),
		ClientSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "emexd", Name: "client_sessions", Help: "currently connected client control sessions",
		}),
		AgentSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "emexd", Name: "agent_sessions", Help: "currently connected in-container agent sessions",
		}),
	}

	reg.MustRegister(
		m.EmoesRunning, m.CpusAvailable, m.CpusTotal,
		m.StartsTotal, m.StopsTotal, m.StartFailures,
		m.ClientSessions, m.AgentSessions,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
