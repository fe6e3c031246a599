// Package metrics exposes Prometheus instrumentation for the REST gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autorest_requests_total",
			Help: "Total number of handled requests by entity, handler kind and status code",
		},
		[]string{"entity", "kind", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autorest_query_duration_seconds",
			Help:    "Database query duration by catalog and handler kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"catalog", "kind"},
	)

	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autorest_query_errors_total",
			Help: "Total number of failed database queries by catalog and handler kind",
		},
		[]string{"catalog", "kind"},
	)

	ReflectedTables = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autorest_reflected_tables",
			Help: "Number of tables reflected per catalog at startup",
		},
		[]string{"catalog"},
	)
)

// ObserveRequest records one handled request.
func ObserveRequest(entity, kind string, status int) {
	RequestsTotal.WithLabelValues(entity, kind, strconv.Itoa(status)).Inc()
}

// ObserveQuery records one database query's latency, and its failure if err
// is non-nil.
func ObserveQuery(catalog, kind string, start time.Time, err error) {
	QueryDuration.WithLabelValues(catalog, kind).Observe(time.Since(start).Seconds())
	if err != nil {
		QueryErrors.WithLabelValues(catalog, kind).Inc()
	}
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
