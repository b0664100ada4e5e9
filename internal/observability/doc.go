// Package observability provides logging, metrics, and tracing
// for the avaguard server.
//
// # Logging
//
// The Logger interface wraps zap:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("quota reloaded",
//	    observability.String("quota", q.String()),
//	)
//
// # Metrics
//
// Request metrics are kept in a dedicated registry served by Handler:
//
//	metrics := observability.NewMetrics("avaguard")
//	mux.Handle("/metrics", metrics.Handler())
//
// # Tracing
//
// NewTracer installs an OpenTelemetry provider exporting over OTLP gRPC.
// TracingMiddleware starts a server span per request and stores the trace
// and span IDs in the context, where WithContext picks them up for logs.
package observability
