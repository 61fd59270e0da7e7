// Package observability provides structured logging, Prometheus metrics, health
// probes, and OpenTelemetry wiring for the authorization service.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("decision_id", id).Info("decision recorded")
//
// Loggers travel through context; FromContext stamps request, user, and
// organization IDs onto every line:
//
//	observability.FromContext(ctx).Warn("audit sink degraded")
//
// # Prometheus Metrics
//
// Initialize metrics against a registry:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.DecisionsTotal.WithLabelValues("denied", "insufficient_level").Inc()
//	metrics.DecisionDuration.WithLabelValues("denied").Observe(0.004)
//
// Expose them:
//
//	observability.RegisterMetricsEndpoint(mux, registry)
//
// # Health Checks
//
// Probe the audit database and the Redis stream sink:
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
// Initialize tracing and OTLP metrics:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "warden",
//		SampleRatio: 0.1,
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/authz: records decision metrics through Metrics and OTelMetrics
//   - pkg/config: observability configuration
//   - pkg/middleware: request logging and metrics middleware
package observability
