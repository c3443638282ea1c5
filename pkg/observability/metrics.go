package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing, so libraries can be used without a registry.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	AuthOutcomesTotal    *prometheus.CounterVec
	AccessDecisionsTotal *prometheus.CounterVec
	PasswordHashDuration prometheus.Histogram
	TokenOperationsTotal *prometheus.CounterVec
	SecureTokensSwept    prometheus.Counter
	RateLimitedTotal     *prometheus.CounterVec

	// Storage metrics
	StorageErrorsTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pastebin_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pastebin_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pastebin_auth_outcomes_total",
				Help: "Authentication outcomes by kind and rejection reason",
			},
			[]string{"outcome", "reason"},
		),
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pastebin_access_decisions_total",
				Help: "Access control decisions by action",
			},
			[]string{"action", "decision"},
		),
		PasswordHashDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pastebin_password_hash_duration_seconds",
				Help:    "Time spent deriving password hashes",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		TokenOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pastebin_token_operations_total",
				Help: "Token lifecycle operations",
			},
			[]string{"operation"},
		),
		SecureTokensSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pastebin_secure_tokens_swept_total",
				Help: "Expired secure session tokens removed by the sweeper",
			},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pastebin_rate_limited_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"route"},
		),

		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pastebin_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"operation", "backend"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pastebin_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pastebin_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthOutcomesTotal,
		m.AccessDecisionsTotal,
		m.PasswordHashDuration,
		m.TokenOperationsTotal,
		m.SecureTokensSwept,
		m.RateLimitedTotal,
		m.StorageErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// AuthOutcome counts one authentication outcome
func (m *Metrics) AuthOutcome(outcome, reason string) {
	if m == nil {
		return
	}
	m.AuthOutcomesTotal.WithLabelValues(outcome, reason).Inc()
}

// AccessDecision counts one access control decision
func (m *Metrics) AccessDecision(action, decision string) {
	if m == nil {
		return
	}
	m.AccessDecisionsTotal.WithLabelValues(action, decision).Inc()
}

// ObserveHash records how long a password hash took
func (m *Metrics) ObserveHash(d time.Duration) {
	if m == nil {
		return
	}
	m.PasswordHashDuration.Observe(d.Seconds())
}

// TokenOperation counts a token lifecycle event (create, edit, delete, rotate)
func (m *Metrics) TokenOperation(op string) {
	if m == nil {
		return
	}
	m.TokenOperationsTotal.WithLabelValues(op).Inc()
}

// Swept counts expired secure tokens removed by the sweeper
func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SecureTokensSwept.Add(float64(n))
}

// RateLimited counts a request rejected by a limiter
func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(route).Inc()
}

// StorageError counts a failed store call
func (m *Metrics) StorageError(operation, backend string) {
	if m == nil {
		return
	}
	m.StorageErrorsTotal.WithLabelValues(operation, backend).Inc()
}

// CacheHit counts a cache hit or miss
func (m *Metrics) CacheHit(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by route template so path parameters such as paste
// ids do not explode cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
