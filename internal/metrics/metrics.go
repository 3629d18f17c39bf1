// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "daily_expenses"

// Metrics groups every collector the server records to.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	AggregationDuration *prometheus.HistogramVec
	IntegrityErrors     *prometheus.CounterVec
	AuditUsers          prometheus.Gauge
	AuditExpenses       prometheus.Gauge
	AuditLastSuccess    prometheus.Gauge
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route template and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AggregationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Time spent reading and aggregating report data.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"report"}),
		IntegrityErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_integrity_errors_total",
			Help:      "Aggregations aborted because stored data was inconsistent.",
		}, []string{"report"}),
		AuditUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_users",
			Help:      "Users seen by the last successful audit.",
		}),
		AuditExpenses: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_expenses",
			Help:      "Expenses seen by the last successful audit.",
		}),
		AuditLastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_last_success_timestamp_seconds",
			Help:      "Unix time of the last audit that found no integrity errors.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAggregation records how long report took since start.
// A nil *Metrics is valid and records nothing.
func (m *Metrics) ObserveAggregation(report string, start time.Time) {
	if m == nil {
		return
	}
	m.AggregationDuration.WithLabelValues(report).Observe(time.Since(start).Seconds())
}

// IntegrityError counts an aborted aggregation.
func (m *Metrics) IntegrityError(report string) {
	if m == nil {
		return
	}
	m.IntegrityErrors.WithLabelValues(report).Inc()
}
