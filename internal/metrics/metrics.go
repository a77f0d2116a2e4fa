// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline and the HTTP layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hiringdata"

var (
	ingestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingestions_total",
		Help:      "Completed ingestion requests by table and outcome.",
	}, []string{"table", "status"})

	rowsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_ingested_total",
		Help:      "Rows accepted and flushed to storage, by table.",
	}, []string{"table"})

	rowErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "row_errors_total",
		Help:      "Row and batch errors collected during ingestion, by table.",
	}, []string{"table"})

	ingestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_duration_seconds",
		Help:      "End-to-end ingestion duration, by table.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"table"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveIngestion records the outcome of one ingestion request.
func ObserveIngestion(table, status string, inserted int64, errorCount int, duration time.Duration) {
	ingestionsTotal.WithLabelValues(table, status).Inc()
	rowsIngested.WithLabelValues(table).Add(float64(inserted))
	rowErrors.WithLabelValues(table).Add(float64(errorCount))
	ingestDuration.WithLabelValues(table).Observe(duration.Seconds())
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
