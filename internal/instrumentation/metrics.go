package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod = "method"
	attrPath   = "path"
	attrStatus = "status"
	attrType   = "type"
	attrState  = "state"
	attrTool   = "tool"
)

// Histogram names that Config.Buckets can re-bucket.
const (
	metricFileOperationDuration = "file_operation_duration_seconds"
	metricBatchOperations       = "batch_operations"
)

var (
	defaultFileOperationBuckets  = []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0}
	defaultBatchOperationBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 1000}
)

// Metrics provides methods for recording observability metrics.
// A nil *Metrics or a zero Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// File operation metrics
	fileOperationsTotal       metric.Int64Counter
	fileOperationDuration     metric.Float64Histogram
	fileOperationRetriesTotal metric.Int64Counter

	// Batch metrics
	batchRunsTotal          metric.Int64Counter
	batchOperations         metric.Int64Histogram
	batchInflightOperations metric.Int64UpDownCounter

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels records unknown operation types verbatim instead of
	// folding them into "other"
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	// File operation metrics
	m.fileOperationsTotal, err = meter.Int64Counter(
		"file_operations_total",
		metric.WithDescription("Total number of file operation attempts"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create file_operations_total counter: %w", err)
	}

	m.fileOperationDuration, err = meter.Float64Histogram(
		metricFileOperationDuration,
		metric.WithDescription("File operation attempt duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(defaultFileOperationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create file_operation_duration_seconds histogram: %w", err)
	}

	m.fileOperationRetriesTotal, err = meter.Int64Counter(
		"file_operation_retries_total",
		metric.WithDescription("Total number of file operation retries"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create file_operation_retries_total counter: %w", err)
	}

	// Batch metrics
	m.batchRunsTotal, err = meter.Int64Counter(
		"batch_runs_total",
		metric.WithDescription("Total number of batch runs by final state"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch_runs_total counter: %w", err)
	}

	m.batchOperations, err = meter.Int64Histogram(
		metricBatchOperations,
		metric.WithDescription("Number of operations submitted per batch"),
		metric.WithUnit("{operation}"),
		metric.WithExplicitBucketBoundaries(defaultBatchOperationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch_operations histogram: %w", err)
	}

	m.batchInflightOperations, err = meter.Int64UpDownCounter(
		"batch_inflight_operations",
		metric.WithDescription("Number of file operations currently holding a concurrency slot"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch_inflight_operations gauge: %w", err)
	}

	// MCP Tool Metrics
	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordFileOperation records one attempt of a file operation.
//
// Parameters:
//   - kind: operation type (create, read, update, delete, copy, move)
//   - status: "success" or "error"
//   - duration: time taken by the attempt
func (m *Metrics) RecordFileOperation(ctx context.Context, kind, status string, duration time.Duration) {
	if m == nil || m.fileOperationsTotal == nil || m.fileOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrType, m.kindLabel(kind)),
		attribute.String(attrStatus, status),
	}

	m.fileOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.fileOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordFileOperationRetry records that a failed attempt will be retried.
func (m *Metrics) RecordFileOperationRetry(ctx context.Context, kind string) {
	if m == nil || m.fileOperationRetriesTotal == nil {
		return
	}

	m.fileOperationRetriesTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String(attrType, m.kindLabel(kind))))
}

// RecordBatch records a finished batch with its final state and size.
func (m *Metrics) RecordBatch(ctx context.Context, state string, operations int) {
	if m == nil || m.batchRunsTotal == nil || m.batchOperations == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrState, state))
	m.batchRunsTotal.Add(ctx, 1, attrs)
	m.batchOperations.Record(ctx, int64(operations), attrs)
}

// IncrementInflight marks one more operation as holding a slot.
func (m *Metrics) IncrementInflight(ctx context.Context) {
	if m == nil || m.batchInflightOperations == nil {
		return
	}

	m.batchInflightOperations.Add(ctx, 1)
}

// DecrementInflight marks one operation as having released its slot.
func (m *Metrics) DecrementInflight(ctx context.Context) {
	if m == nil || m.batchInflightOperations == nil {
		return
	}

	m.batchInflightOperations.Add(ctx, -1)
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
//
// Parameters:
//   - toolName: Name of the MCP tool (e.g., "batch_file_operations")
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the tool execution
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// DetailedLabels reports whether high-cardinality labels are enabled.
func (m *Metrics) DetailedLabels() bool {
	return m != nil && m.detailedLabels
}

func (m *Metrics) kindLabel(kind string) string {
	if m.detailedLabels && kind != "" {
		return kind
	}
	return NormalizeKind(kind)
}
