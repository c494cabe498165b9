// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithOperation("inventory.update").WithPrincipal(userID, tenantID).Warn("authorization denied")
//
// Request-scoped logging:
//
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).Info("handled") // adds request_id
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordDecision("inventory.get", observability.OutcomeAllowed, "")
//	observability.RegisterMetricsEndpoint(router, registry)
//
// All Record* helpers accept a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
//
// Tracer() returns the package tracer; it is a no-op until InitOTel installs
// a provider.
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/authz: Decision metrics and denial logging
package observability
