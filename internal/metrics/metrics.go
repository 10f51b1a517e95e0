// Package metrics exposes prometheus collectors for decision and action
// throughput.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	decisionsTotal   *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
	actionRunsTotal  *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "krino",
				Name:      "decisions_total",
				Help:      "Total decision requests by org_type and outcome label",
			},
			[]string{"org_type", "outcome"},
		),

		decisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "krino",
				Name:      "decision_duration_seconds",
				Help:      "Duration of rule matching plus action execution",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"org_type"},
		),

		actionRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "krino",
				Name:      "action_runs_total",
				Help:      "Total executed actions by name and success",
			},
			[]string{"action", "ok"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.decisionsTotal,
		m.decisionDuration,
		m.actionRunsTotal,
	)
	return m
}

// ObserveDecision records one decision request.
func (m *Metrics) ObserveDecision(orgType, outcome string, elapsed time.Duration) {
	m.decisionsTotal.WithLabelValues(orgType, outcome).Inc()
	m.decisionDuration.WithLabelValues(orgType).Observe(elapsed.Seconds())
}

// ObserveAction records one executed action.
func (m *Metrics) ObserveAction(action string, ok bool) {
	okLabel := "false"
	if ok {
		okLabel = "true"
	}
	m.actionRunsTotal.WithLabelValues(action, okLabel).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
