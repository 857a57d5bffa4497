// Package metrics holds the Prometheus instruments of the client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh request outcomes.
const (
	Issued    = "issued"
	Queued    = "queued"
	Coalesced = "coalesced"
)

// Refresh result outcomes.
const (
	Accepted  = "accepted"
	Discarded = "discarded"
	Failed    = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	refreshRequests *prometheus.CounterVec
	refreshResults  *prometheus.CounterVec
	inFlight        *prometheus.GaugeVec
	actions         *prometheus.CounterVec
	ledgerLatency   *prometheus.HistogramVec
	ledgerErrors    *prometheus.CounterVec
}

// New creates the instruments on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "julctl_refresh_requests_total", Help: "Refresh requests by resource and outcome"},
			[]string{"resource", "outcome"},
		),
		refreshResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "julctl_refresh_results_total", Help: "Refresh results by resource and outcome"},
			[]string{"resource", "outcome"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "julctl_refresh_in_flight", Help: "Outstanding refresh calls by resource"},
			[]string{"resource"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "julctl_actions_total", Help: "User actions by name and result"},
			[]string{"action", "result"},
		),
		ledgerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "julctl_ledger_request_duration_seconds", Help: "Ledger API latency", Buckets: prometheus.DefBuckets},
			[]string{"endpoint"},
		),
		ledgerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "julctl_ledger_errors_total", Help: "Ledger API failures by endpoint and kind"},
			[]string{"endpoint", "kind"},
		),
	}
	m.registry.MustRegister(
		m.refreshRequests,
		m.refreshResults,
		m.inFlight,
		m.actions,
		m.ledgerLatency,
		m.ledgerErrors,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RefreshRequested(resource, outcome string) {
	m.refreshRequests.WithLabelValues(resource, outcome).Inc()
}

func (m *Metrics) RefreshResult(resource, outcome string) {
	m.refreshResults.WithLabelValues(resource, outcome).Inc()
}

func (m *Metrics) InFlight(resource string, delta float64) {
	m.inFlight.WithLabelValues(resource).Add(delta)
}

func (m *Metrics) Action(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.actions.WithLabelValues(action, result).Inc()
}

// ObserveLedger records the latency of one ledger call and, if it failed, its kind.
func (m *Metrics) ObserveLedger(endpoint string, start time.Time, errKind string) {
	m.ledgerLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if errKind != "" {
		m.ledgerErrors.WithLabelValues(endpoint, errKind).Inc()
	}
}
