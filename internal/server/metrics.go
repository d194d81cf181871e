// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// documentsTotal counts completed /api/documents uploads, partitioned by
	// outcome: "ok" or "error".
	documentsTotal *prometheus.CounterVec

	// ingestDurationSeconds records the wall-clock duration of each successful
	// document ingestion from upload receipt to index flush.
	ingestDurationSeconds prometheus.Histogram

	// queriesTotal counts answered queries, partitioned by retrieval mode and
	// outcome.
	queriesTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		documentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lightrag",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of /api/documents uploads completed, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lightrag",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of successful document ingestions.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lightrag",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of answered queries, partitioned by retrieval mode and outcome.",
		}, []string{"mode", "outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lightrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lightrag",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument wraps a handler with request counting and latency observation
// under the given logical handler name.
func (m *serverMetrics) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)

		m.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
