// Package metrics provides Prometheus observability for the ledger. A
// Metrics value doubles as an event sink so every emitted ledger event is
// counted without the services knowing about Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trust-ledger/internal/models"
)

// Metrics holds all Prometheus metrics for the ledger
type Metrics struct {
	// Ledger events by type
	LedgerEvents *prometheus.CounterVec

	// HTTP request latencies by route and method
	RequestLatency *prometheus.HistogramVec

	// HTTP responses by route and status class
	Responses *prometheus.CounterVec

	// Current pool utilization in basis points
	PoolUtilizationBps prometheus.Gauge
}

// New creates and registers all ledger metrics
func New() *Metrics {
	return &Metrics{
		LedgerEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_ledger_events_total",
			Help: "Total ledger events by type",
		}, []string{"type"}),

		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trust_ledger_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and method",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method"}),

		Responses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_ledger_responses_total",
			Help: "Total HTTP responses by route and status class",
		}, []string{"route", "class"}),

		PoolUtilizationBps: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "trust_ledger_pool_utilization_bps",
			Help: "Current liquidity pool utilization in basis points",
		}),
	}
}

// Emit counts a ledger event. Implements events.Sink.
func (m *Metrics) Emit(_ context.Context, event models.LedgerEvent) {
	if m != nil {
		m.LedgerEvents.WithLabelValues(string(event.Type)).Inc()
	}
}

// ObserveRequest records a completed HTTP request
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(route, method).Observe(d.Seconds())
	m.Responses.WithLabelValues(route, statusClass(status)).Inc()
}

// SetPoolUtilization updates the utilization gauge
func (m *Metrics) SetPoolUtilization(bps uint64) {
	if m != nil {
		m.PoolUtilizationBps.Set(float64(bps))
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
