// Package telemetry holds the Prometheus collectors of the service.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the attribution engine.
type Metrics struct {
	// Upstream query metrics
	QueryLatency *prometheus.HistogramVec
	QueryRows    *prometheus.CounterVec
	QueryErrors  *prometheus.CounterVec

	// Metadata metrics
	MetadataDegraded *prometheus.CounterVec

	// Request metrics
	RequestLatency *prometheus.HistogramVec
}

// DefaultMetrics is registered with the default Prometheus registerer.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer, "attribution")

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueryLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_query_duration_seconds",
				Help:      "Analytical store query latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"source", "kind"},
		),
		QueryRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_rows_total",
				Help:      "Rows returned by the analytical store",
			},
			[]string{"source", "kind"},
		),
		QueryErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_query_errors_total",
				Help:      "Failed analytical store queries",
			},
			[]string{"source", "kind"},
		),
		MetadataDegraded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "metadata_degraded_total",
				Help:      "Responses served with fallback metadata",
			},
			[]string{"level"},
		),
		RequestLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Engine operation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordQuery records one upstream query.
func (m *Metrics) RecordQuery(source, kind string, started time.Time, rows int, err error) {
	m.QueryLatency.WithLabelValues(source, kind).Observe(time.Since(started).Seconds())
	if err != nil {
		m.QueryErrors.WithLabelValues(source, kind).Inc()
		return
	}
	m.QueryRows.WithLabelValues(source, kind).Add(float64(rows))
}

// RecordMetadataDegraded records a metadata lookup that fell back to default names.
func (m *Metrics) RecordMetadataDegraded(level string) {
	m.MetadataDegraded.WithLabelValues(level).Inc()
}

// RecordRequest records one engine operation.
func (m *Metrics) RecordRequest(operation string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RequestLatency.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}
