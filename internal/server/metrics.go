// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
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
	// chatTurnsTotal counts completed /api/chat turns, partitioned by
	// outcome: "ok", "degraded", "not_found", or "invalid".
	chatTurnsTotal *prometheus.CounterVec

	// chatDurationSeconds records the wall-clock duration of each /api/chat
	// turn from request receipt to answer.
	chatDurationSeconds *prometheus.HistogramVec

	// collectionCreatesTotal counts POST /api/collections requests,
	// partitioned by outcome: "ok", "conflict", or "error".
	collectionCreatesTotal *prometheus.CounterVec

	// collectionDocuments records the number of chunks indexed per
	// successful collection create.
	collectionDocuments prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
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
		chatTurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cvchat",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total number of /api/chat turns completed, partitioned by outcome.",
		}, []string{"outcome"}),

		chatDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cvchat",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/chat turns from receipt to answer.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		collectionCreatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cvchat",
			Subsystem: "collections",
			Name:      "creates_total",
			Help:      "Total number of collection create requests, partitioned by outcome.",
		}, []string{"outcome"}),

		collectionDocuments: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cvchat",
			Subsystem: "collections",
			Name:      "documents",
			Help:      "Number of resume chunks indexed per successful collection create.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cvchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cvchat",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}
