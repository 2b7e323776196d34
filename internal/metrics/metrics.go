// Package metrics exposes prometheus instrumentation for the HTTP surface
// and the question loop.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablechat_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablechat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablechat_uploads_total",
			Help: "Dataset uploads by status",
		},
		[]string{"status"},
	)

	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablechat_questions_total",
			Help: "Questions answered by outcome",
		},
		[]string{"outcome"},
	)

	AttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablechat_attempts_total",
			Help: "Translate/extract/evaluate attempt cycles",
		},
	)

	TranslateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablechat_translate_duration_seconds",
			Help:    "Duration of translator calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Middleware records request counts and latencies, labeled by the chi route
// pattern so per-ID paths don't explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
