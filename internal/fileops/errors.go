package fileops

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
)

// ErrorCode classifies a failed file operation.
// Codes are strings so they read well in logs and JSON.
type ErrorCode string

const (
	// CodeNotFound indicates the source path does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeAlreadyExists indicates the target exists and cannot be replaced.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeForbidden indicates a permission error or a path outside the root.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// CodeInvalidInput indicates the operation itself is malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeTimeout indicates the batch deadline passed.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeExecutionFailed covers every other I/O failure.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"
)

// ErrDestinationRequired is returned by copy and move without a destination.
var ErrDestinationRequired = errors.New("destination is required")

// ErrInvalidContent is returned when base64 content cannot be decoded.
var ErrInvalidContent = errors.New("invalid base64 content")

// Error is the error returned for a failed operation.
type Error struct {
	Code ErrorCode
	Kind Kind
	Path string
	Err  error
}

// Error returns the underlying message prefixed with the operation.
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err for the given operation, deriving the code from err.
func NewError(op Operation, err error) *Error {
	return &Error{
		Code: Classify(err),
		Kind: op.Type,
		Path: op.Path,
		Err:  err,
	}
}

// Classify maps an error to an ErrorCode.
func Classify(err error) ErrorCode {
	var opErr *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &opErr):
		return opErr.Code
	case errors.Is(err, ErrDestinationRequired),
		errors.Is(err, ErrInvalidContent),
		errors.Is(err, ErrUnsupportedKind):
		return CodeInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, os.ErrNotExist):
		return CodeNotFound
	case errors.Is(err, os.ErrExist):
		return CodeAlreadyExists
	case errors.Is(err, os.ErrPermission), errors.Is(err, billy.ErrCrossedBoundary):
		return CodeForbidden
	default:
		return CodeExecutionFailed
	}
}
