// Package metrics provides Prometheus instrumentation for the draft coach service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SimulationRuns counts league simulation runs by final status.
	SimulationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "draftcoach_simulation_runs_total",
		Help: "League distribution simulation runs by final status",
	}, []string{"status"})

	// SimulationDuration tracks wall time of completed simulation runs.
	SimulationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "draftcoach_simulation_duration_seconds",
		Help:    "League distribution simulation duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// ActiveSimulations tracks runs currently in flight.
	ActiveSimulations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "draftcoach_active_simulations",
		Help: "Number of simulation runs currently executing",
	})

	// CacheLookups counts distribution cache lookups by backend and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "draftcoach_distribution_cache_lookups_total",
		Help: "Distribution cache lookups by backend and result",
	}, []string{"backend", "result"})

	// CandidatesScored counts candidates evaluated by the recommendation engine.
	CandidatesScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "draftcoach_candidates_scored_total",
		Help: "Candidates scored across all recommendation requests",
	})

	// RecommendationLatency tracks one full scoring pass.
	RecommendationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "draftcoach_recommendation_latency_seconds",
		Help:    "Recommendation scoring pass latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "draftcoach_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "draftcoach_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// CacheHit records a cache hit for backend
func CacheHit(backend string) {
	CacheLookups.WithLabelValues(backend, "hit").Inc()
}

// CacheMiss records a cache miss for backend
func CacheMiss(backend string) {
	CacheLookups.WithLabelValues(backend, "miss").Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern returns the mux route template so run ids don't explode label cardinality
func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
