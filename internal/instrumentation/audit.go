package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ToolInvocation captures information about a tool invocation for audit logging.
//
// # Privacy Considerations
//
// File paths can reveal user data. Paths are only logged by LogAuditAttrs,
// and only when the AuditLogger is configured with IncludePaths.
type ToolInvocation struct {
	// Tool name
	Tool string

	// Batch details
	BatchID    string
	Operations int
	Succeeded  int
	Failed     int
	ReadOnly   bool
	Paths      []string

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for structured logging.
// Paths are never included.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	if ti.BatchID != "" {
		attrs = append(attrs, slog.String("batch_id", ti.BatchID))
	}
	if ti.Operations > 0 {
		attrs = append(attrs,
			slog.Int("operations", ti.Operations),
			slog.Int("succeeded", ti.Succeeded),
			slog.Int("failed", ti.Failed),
		)
	}
	if ti.ReadOnly {
		attrs = append(attrs, slog.Bool("read_only", true))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}

	return attrs
}

// LogAuditAttrs returns LogAttrs plus the span ID and the touched paths.
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := ti.LogAttrs()
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	if len(ti.Paths) > 0 {
		attrs = append(attrs, slog.Any("paths", ti.Paths))
	}
	return attrs
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete() when the tool operation finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithBatch sets the batch identifier and its outcome counts.
func (ti *ToolInvocation) WithBatch(id string, operations, succeeded, failed int) *ToolInvocation {
	ti.BatchID = id
	ti.Operations = operations
	ti.Succeeded = succeeded
	ti.Failed = failed
	return ti
}

// WithPaths records the paths the invocation touched.
func (ti *ToolInvocation) WithPaths(paths []string) *ToolInvocation {
	ti.Paths = paths
	return ti
}

// WithReadOnly records whether the server ran in read-only mode.
func (ti *ToolInvocation) WithReadOnly(readOnly bool) *ToolInvocation {
	ti.ReadOnly = readOnly
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ti.TraceID = span.SpanContext().TraceID().String()
		ti.SpanID = span.SpanContext().SpanID().String()
	}
	return ti
}

// Complete marks the invocation as completed and calculates duration.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// CompleteWithError marks the invocation as failed with the given error.
func (ti *ToolInvocation) CompleteWithError(err error) *ToolInvocation {
	return ti.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful.
func (ti *ToolInvocation) CompleteSuccess() *ToolInvocation {
	return ti.Complete(true, nil)
}

// AuditLogger provides structured audit logging for tool invocations.
type AuditLogger struct {
	logger       *slog.Logger
	includePaths bool
	enabled      bool
}

// NewAuditLogger creates an enabled AuditLogger that omits paths.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger,
		enabled: true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	al := NewAuditLogger(logger)
	al.includePaths = config.IncludePaths
	al.enabled = config.Enabled
	return al
}

// SetIncludePaths sets whether touched paths are written to the audit log.
func (al *AuditLogger) SetIncludePaths(include bool) {
	al.includePaths = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogToolInvocation logs a tool invocation. Failed invocations are logged
// at warn level.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePaths {
		attrs = ti.LogAuditAttrs()
	} else {
		attrs = ti.LogAttrs()
	}

	level := slog.LevelInfo
	msg := "tool_executed"
	if !ti.Success {
		level = slog.LevelWarn
		msg = "tool_failed"
	}
	al.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
