// Package instrumentation provides OpenTelemetry instrumentation for the
// batchfs MCP server.
//
// It covers:
//   - OpenTelemetry metrics for HTTP requests, tool invocations, file
//     operations and batch runs
//   - Distributed tracing for tool calls, batches and individual attempts
//   - Prometheus export via a /metrics endpoint on a dedicated port
//   - OTLP export for observability platforms
//   - Audit logging of tool invocations
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// File Operation Metrics:
//   - file_operations_total: Counter of operation attempts by type and status
//   - file_operation_duration_seconds: Histogram of attempt durations
//   - file_operation_retries_total: Counter of retries by type
//
// Batch Metrics:
//   - batch_runs_total: Counter of batches by final state
//   - batch_operations: Histogram of operations per batch
//   - batch_inflight_operations: Operations currently holding a concurrency slot
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// Operation type labels pass through NormalizeKind so untrusted input cannot
// create unbounded label values.
//
// # Tracing
//
// Spans are created for:
//   - MCP tool invocations (tool.<name>)
//   - batch runs (batch.run)
//   - each attempt of a file operation (fileops.<type>)
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: batchfs)
//   - AUDIT_LOGGING_INCLUDE_PATHS: Write touched paths to the audit log (default: false)
//   - METRICS_FILE_OPERATION_BUCKETS: Comma separated boundaries for
//     file_operation_duration_seconds
//   - METRICS_BATCH_SIZE_BUCKETS: Comma separated boundaries for batch_operations
//
// The Prometheus exporter uses a registry owned by the Provider, served by
// PrometheusHandler together with Go runtime and process metrics.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordFileOperation(ctx, "create", instrumentation.StatusSuccess, time.Since(start))
//	recorder.RecordBatch(ctx, "completed", 12)
package instrumentation
