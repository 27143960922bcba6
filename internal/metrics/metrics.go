package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts HTTP requests served by the API.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RemoteRequestCounter counts calls made to cloud providers.
	RemoteRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloud_remote_requests_total",
			Help: "Total number of requests sent to cloud providers",
		},
		[]string{"provider", "resource", "operation", "outcome"},
	)

	RemoteRequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloud_remote_request_duration_seconds",
			Help:    "Duration of requests sent to cloud providers in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "resource", "operation"},
	)

	ReconciliationRunCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_runs_total",
			Help: "Total number of reconciliation runs by outcome",
		},
		[]string{"outcome"},
	)

	ReconciledInstanceCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_deleted_instances_total",
			Help: "Total number of instances soft-deleted by reconciliation",
		},
	)

	TokenIssuedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "authorisation_tokens_issued_total",
			Help: "Total number of authorisation tokens issued",
		},
	)

	TokenValidationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorisation_token_validations_total",
			Help: "Total number of authorisation token validations by result",
		},
		[]string{"result"},
	)

	registerOnce sync.Once
)

// Register adds every collector to the default Prometheus registry. It is
// safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDurationHistogram,
			RemoteRequestCounter,
			RemoteRequestDurationHistogram,
			ReconciliationRunCounter,
			ReconciledInstanceCounter,
			TokenIssuedCounter,
			TokenValidationCounter,
		)
	})
}

// Outcome labels a remote call or run by whether it failed.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Middleware records request counts and durations labelled by chi route
// pattern rather than raw path, keeping label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		RequestDurationHistogram.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
