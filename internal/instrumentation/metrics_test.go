package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T, detailedLabels bool) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"), detailedLabels)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumValue(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestMetrics_RecordFileOperation(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, false)

	m.RecordFileOperation(ctx, "create", StatusSuccess, time.Millisecond)
	m.RecordFileOperation(ctx, "create", StatusSuccess, 2*time.Millisecond)
	m.RecordFileOperation(ctx, "chmod", StatusError, time.Millisecond)

	got := collect(t, reader)

	total := got["file_operations_total"]
	assert.Equal(t, int64(2), sumValue(t, total,
		attribute.String("type", "create"), attribute.String("status", StatusSuccess)))
	assert.Equal(t, int64(1), sumValue(t, total,
		attribute.String("type", KindOther), attribute.String("status", StatusError)))

	hist, ok := got["file_operation_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestMetrics_DetailedLabelsKeepUnknownKinds(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, true)

	m.RecordFileOperation(ctx, "chmod", StatusError, time.Millisecond)
	m.RecordFileOperationRetry(ctx, "chmod")

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumValue(t, got["file_operations_total"],
		attribute.String("type", "chmod"), attribute.String("status", StatusError)))
	assert.Equal(t, int64(1), sumValue(t, got["file_operation_retries_total"],
		attribute.String("type", "chmod")))
	assert.True(t, m.DetailedLabels())
}

func TestMetrics_RecordFileOperationRetry(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, false)

	m.RecordFileOperationRetry(ctx, "move")
	m.RecordFileOperationRetry(ctx, "move")
	m.RecordFileOperationRetry(ctx, "read")

	got := collect(t, reader)
	retries := got["file_operation_retries_total"]
	assert.Equal(t, int64(2), sumValue(t, retries, attribute.String("type", "move")))
	assert.Equal(t, int64(1), sumValue(t, retries, attribute.String("type", "read")))
}

func TestMetrics_RecordBatch(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, false)

	m.RecordBatch(ctx, "completed", 5)
	m.RecordBatch(ctx, "stopped_early", 3)

	got := collect(t, reader)
	runs := got["batch_runs_total"]
	assert.Equal(t, int64(1), sumValue(t, runs, attribute.String("state", "completed")))
	assert.Equal(t, int64(1), sumValue(t, runs, attribute.String("state", "stopped_early")))

	hist, ok := got["batch_operations"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range hist.DataPoints {
		total += dp.Sum
	}
	assert.Equal(t, int64(8), total)
}

func TestMetrics_Inflight(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, false)

	m.IncrementInflight(ctx)
	m.IncrementInflight(ctx)
	m.DecrementInflight(ctx)

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumValue(t, got["batch_inflight_operations"]))
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, false)

	m.RecordToolInvocation(ctx, "batch_file_operations", StatusSuccess, 150*time.Millisecond)
	m.RecordToolInvocation(ctx, "batch_file_operations", StatusError, 10*time.Millisecond)

	got := collect(t, reader)
	invocations := got["mcp_tool_invocations_total"]
	assert.Equal(t, int64(1), sumValue(t, invocations,
		attribute.String("tool", "batch_file_operations"), attribute.String("status", StatusSuccess)))
	assert.Equal(t, int64(1), sumValue(t, invocations,
		attribute.String("tool", "batch_file_operations"), attribute.String("status", StatusError)))
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t, false)

	m.RecordHTTPRequest(ctx, "POST", "/mcp", 200, 100*time.Millisecond)
	m.RecordHTTPRequest(ctx, "POST", "/mcp", 500, 50*time.Millisecond)

	got := collect(t, reader)
	requests := got["http_requests_total"]
	assert.Equal(t, int64(1), sumValue(t, requests,
		attribute.String("method", "POST"), attribute.String("path", "/mcp"), attribute.String("status", "200")))
	assert.Equal(t, int64(1), sumValue(t, requests,
		attribute.String("method", "POST"), attribute.String("path", "/mcp"), attribute.String("status", "500")))
}

func TestMetrics_NilAndZeroAreNoOps(t *testing.T) {
	ctx := context.Background()

	for name, m := range map[string]*Metrics{"nil": nil, "zero": {}} {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				m.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
				m.RecordFileOperation(ctx, "read", StatusSuccess, time.Millisecond)
				m.RecordFileOperationRetry(ctx, "read")
				m.RecordBatch(ctx, "completed", 1)
				m.IncrementInflight(ctx)
				m.DecrementInflight(ctx)
				m.RecordToolInvocation(ctx, "batch_file_operations", StatusSuccess, time.Millisecond)
				_ = m.DetailedLabels()
			})
		})
	}
}

func TestMetrics_FromProvider(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	require.NoError(t, err)
	defer func() { _ = provider.Shutdown(ctx) }()

	metrics := provider.Metrics()
	require.NotNil(t, metrics)

	assert.NotPanics(t, func() {
		metrics.RecordFileOperation(ctx, "create", StatusSuccess, time.Millisecond)
		metrics.RecordBatch(ctx, "completed", 1)
	})
}
