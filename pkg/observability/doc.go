// Package observability provides structured logging, Prometheus metrics, and health checks.
//
// # Overview
//
// This package centralizes observability infrastructure: JSON logging built on
// log/slog, Prometheus metrics for the HTTP surface and the authorization layer,
// and readiness probes for PostgreSQL and Redis.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("port", 8080).Info("Server started")
//
// Context-aware logging:
//
//	logger.WithField("request_id", reqID).WithError(err).Error("Request failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.AuthzDeniedTotal.WithLabelValues("task", "write").Inc()
//	metrics.LoginFailuresTotal.WithLabelValues("invalid_credentials").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(mux, checker)
//
// A Redis outage reports unhealthy because sessions cannot be verified
// without it; database pool exhaustion reports degraded.
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request logging middleware
package observability
