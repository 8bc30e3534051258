package logging

import (
	"io"
	"log/slog"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation   = "operation"
	KeyTool        = "tool"
	KeyPath        = "path"
	KeyDestination = "destination"
	KeyType        = "type"
	KeyBatchID     = "batch_id"
	KeyAttempt     = "attempt"
	KeyContentSize = "content_bytes"
	KeyDuration    = "duration"
	KeyStatus      = "status"
	KeyError       = "error"
)

// Status values for consistent logging.
// Duplicated from the instrumentation package, which imports logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// NewLogger returns a text logger writing to w. Debug enables debug level.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// WithBatch returns a logger with the batch_id attribute set.
func WithBatch(logger *slog.Logger, batchID string) *slog.Logger {
	return logger.With(slog.String(KeyBatchID, batchID))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Path returns a slog attribute for a file path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Destination returns a slog attribute for a copy or move destination.
func Destination(p string) slog.Attr {
	return slog.String(KeyDestination, p)
}

// OpType returns a slog attribute for a file operation type.
func OpType(kind string) slog.Attr {
	return slog.String(KeyType, kind)
}

// BatchID returns a slog attribute for a batch identifier.
func BatchID(id string) slog.Attr {
	return slog.String(KeyBatchID, id)
}

// Attempt returns a slog attribute for a 1-based attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// ContentSize returns a slog attribute with the length of content in bytes.
// Content itself is never logged.
func ContentSize(content string) slog.Attr {
	return slog.Int(KeyContentSize, len(content))
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}
