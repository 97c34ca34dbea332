// Package metrics holds the Prometheus collectors exported by vssflow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	gatewayOps      *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	graphMutations  *prometheus.CounterVec
	sessions        prometheus.Gauge
}

// New creates the collectors on a private registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		gatewayOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vssflow_gateway_operations_total",
				Help: "Scripts API operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		gatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vssflow_gateway_duration_seconds",
				Help:    "Duration of scripts API operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		graphMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vssflow_graph_mutations_total",
				Help: "Graph mutations applied through the API",
			},
			[]string{"op"},
		),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vssflow_sessions_active",
			Help: "Open editor sessions",
		}),
	}
	reg.MustRegister(
		m.gatewayOps,
		m.gatewayDuration,
		m.graphMutations,
		m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveGateway records one scripts API call.
func (m *Metrics) ObserveGateway(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.gatewayOps.WithLabelValues(op, outcome).Inc()
	m.gatewayDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// GraphMutation counts a successful graph mutation.
func (m *Metrics) GraphMutation(op string) {
	if m == nil {
		return
	}
	m.graphMutations.WithLabelValues(op).Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}
