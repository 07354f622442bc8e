// Package telemetry defines the Prometheus metrics for the scrape, extract,
// and serve pipelines, plus the HTTP middleware that records request metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Total listing pages fetched from the forum.",
		},
	)

	scraperPostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_posts_total",
			Help: "Total posts handled by the scraper, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	extractionCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_calls_total",
			Help: "Total extraction-service calls, labeled by status.",
		},
		[]string{"status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of API request latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"method", "route"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total API requests, labeled by method and status code.",
		},
		[]string{"method", "code"},
	)
)

// ObservePage counts one fetched listing page.
func ObservePage() {
	scraperPagesTotal.Inc()
}

// ObservePost counts one scraped post outcome: inserted, duplicate, or skipped.
func ObservePost(outcome string) {
	scraperPostsTotal.WithLabelValues(outcome).Inc()
}

// ObserveExtraction counts one extraction-service call outcome: ok, error,
// or malformed.
func ObserveExtraction(status string) {
	extractionCallsTotal.WithLabelValues(status).Inc()
}

// Handler exposes the Prometheus registry for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records per-route request metrics on a chi router.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unknown"
		}
		httpRequestDurationSeconds.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
