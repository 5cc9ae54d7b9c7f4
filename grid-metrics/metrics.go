// Package gridmetrics exposes the relay's Prometheus instrumentation.
package gridmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the process collectors. A nil *Metrics is valid and records
// nothing, so instrumentation stays optional in tests.
type Metrics struct {
	registry *prometheus.Registry

	openConnections prometheus.Gauge
	updatesAccepted *prometheus.CounterVec
	sendFailures    prometheus.Counter
	persistFailures prometheus.Counter
}

// New creates a Metrics backed by its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		openConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridlive_open_connections",
			Help: "Number of currently open client connections.",
		}),
		updatesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridlive_updates_accepted_total",
			Help: "Cell updates accepted by the relay, by source.",
		}, []string{"source"}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridlive_send_failures_total",
			Help: "Per-connection broadcast send failures.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridlive_persist_failures_total",
			Help: "Best-effort persistence attempts that failed or wrote nothing.",
		}),
	}
	m.registry.MustRegister(
		m.openConnections,
		m.updatesAccepted,
		m.sendFailures,
		m.persistFailures,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler returns the exposition endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.openConnections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.openConnections.Dec()
	}
}

// UpdateAccepted records one accepted update; source is "client" or
// "synthetic".
func (m *Metrics) UpdateAccepted(source string) {
	if m != nil {
		m.updatesAccepted.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) SendFailed() {
	if m != nil {
		m.sendFailures.Inc()
	}
}

func (m *Metrics) PersistFailed() {
	if m != nil {
		m.persistFailures.Inc()
	}
}
