// Package observability provides structured logging, Prometheus metrics, and health checks.
//
// # Overview
//
// This package centralizes observability infrastructure for the request pipeline:
// JSON logging, metrics collection, health checks, and graceful shutdown.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Info("Server started")
//
// Context-aware logging:
//
//	logger.WithField("request_id", reqID).WithError(err).Error("Request failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/v1/articles", "200").Inc()
//	metrics.RateLimitDecisions.WithLabelValues("general", "allowed").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	mux.HandleFunc("/health/live", checker.Liveness)
//	mux.HandleFunc("/health/ready", checker.Readiness)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/middleware: request logging middleware
package observability
