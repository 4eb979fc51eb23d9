// Package metrics exposes Prometheus collectors for the inventory service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	fetchesTotal               *prometheus.CounterVec
	backgroundJobsTotal        *prometheus.CounterVec
	backgroundQueueDepth       prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_fetches_total",
				Help: "Total number of outbound metadata fetches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		backgroundJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_background_jobs_total",
				Help: "Total number of background collection jobs, labeled by status.",
			},
			[]string{"status"},
		)

		backgroundQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "inventory_background_queue_depth",
				Help: "Number of background collection jobs currently queued.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveFetch increments the fetch counter for the given outcome.
func ObserveFetch(outcome string) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(outcome).Inc()
}

// SetQueueDepth records the current number of queued background jobs.
func SetQueueDepth(n int) {
	if backgroundQueueDepth == nil {
		return
	}
	backgroundQueueDepth.Set(float64(n))
}

// ObserveBackgroundJob increments the background job counter for the given status.
func ObserveBackgroundJob(status string) {
	if backgroundJobsTotal == nil {
		return
	}
	backgroundJobsTotal.WithLabelValues(status).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
