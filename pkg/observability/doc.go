// Package observability provides structured logging, Prometheus metrics,
// health checks and graceful shutdown for the pastebin service.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", 7).Info("login")
//
// Request handlers pull a logger annotated with request and user ids:
//
//	observability.FromContext(r.Context()).Warn("paste not found")
//
// # Prometheus Metrics
//
// A nil *Metrics is valid; every helper is a no-op on it.
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.AuthOutcome("rejected", "unknown_credential")
//	metrics.AccessDecision("edit", "deny")
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
