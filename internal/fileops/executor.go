package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/batchfs/internal/instrumentation"
	"github.com/teemow/batchfs/internal/logging"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// ErrUnsupportedKind is returned for an operation whose Type is not a Kind.
var ErrUnsupportedKind = errors.New("unsupported operation type")

// Executor performs single file operations against a billy filesystem.
type Executor struct {
	fs          billy.Filesystem
	backoffUnit time.Duration
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	now         func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBackoffUnit sets the wait before the first retry.
func WithBackoffUnit(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.backoffUnit = d
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. A nil recorder disables metrics.
func WithMetrics(metrics *instrumentation.Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = metrics
	}
}

// WithClock overrides the clock used for result timestamps.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an Executor for fsys.
func NewExecutor(fsys billy.Filesystem, opts ...ExecutorOption) *Executor {
	e := &Executor{
		fs:          fsys,
		backoffUnit: DefaultBackoffUnit,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Filesystem returns the filesystem operations run against.
//
//nolint:ireturn // exposes the configured billy filesystem.
func (e *Executor) Filesystem() billy.Filesystem {
	return e.fs
}

// Execute runs op, making up to retryAttempts+1 attempts. Between attempts
// it waits one backoff unit per attempt already made. When every attempt
// fails the error of the last attempt is returned. If ctx ends during a
// backoff wait, Execute gives up with CodeTimeout and keeps the last
// attempt's message.
func (e *Executor) Execute(ctx context.Context, op Operation, retryAttempts int) (*Result, error) {
	if retryAttempts < 0 {
		retryAttempts = 0
	}
	logger := e.logger.With(logging.OpType(string(op.Type)), logging.Path(op.Path))

	var (
		attempt int
		lastErr *Error
	)
	result, err := backoff.Retry(ctx,
		func() (*Result, error) {
			attempt++
			res, err := e.attempt(ctx, op, attempt)
			if err != nil {
				lastErr = err
				return nil, err
			}
			return res, nil
		},
		backoff.WithBackOff(newLinearBackOff(e.backoffUnit)),
		backoff.WithMaxTries(uint(retryAttempts+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			e.metrics.RecordFileOperationRetry(ctx, string(op.Type))
			logger.Debug("retrying file operation",
				"retry_attempt", attempt,
				"retry_max", retryAttempts,
				"retry_in_ms", wait.Milliseconds(),
				logging.Err(err))
		}),
	)
	if err == nil {
		return result, nil
	}

	switch {
	case lastErr == nil:
		return nil, NewError(op, err)
	case errors.Is(err, lastErr):
		return nil, lastErr
	default:
		return nil, &Error{
			Code: CodeTimeout,
			Kind: op.Type,
			Path: op.Path,
			Err:  fmt.Errorf("retry aborted after attempt %d: %w (last error: %v)", attempt, err, lastErr.Err),
		}
	}
}

// attempt performs op once and records its span and metrics.
func (e *Executor) attempt(ctx context.Context, op Operation, attempt int) (*Result, *Error) {
	ctx, span := instrumentation.StartFileOperationSpan(ctx, string(op.Type),
		attribute.Int(instrumentation.SpanAttrAttempt, attempt))
	defer span.End()

	start := time.Now()
	res, err := e.apply(op)
	duration := time.Since(start)

	if err != nil {
		opErr := NewError(op, err)
		instrumentation.SetSpanError(span, opErr)
		e.metrics.RecordFileOperation(ctx, string(op.Type), instrumentation.StatusError, duration)
		return nil, opErr
	}

	instrumentation.SetSpanSuccess(span)
	e.metrics.RecordFileOperation(ctx, string(op.Type), instrumentation.StatusSuccess, duration)

	res.Timestamp = e.now()
	res.Success = true
	res.Attempt = attempt
	return res, nil
}

func (e *Executor) apply(op Operation) (*Result, error) {
	res := &Result{Type: op.Type, Path: op.Path}

	switch op.Type {
	case KindCreate:
		return res, e.create(op)
	case KindRead:
		content, err := e.read(op)
		if err != nil {
			return nil, err
		}
		res.Destination = op.Destination
		res.Encoding = op.Encoding
		if res.Encoding == "" {
			res.Encoding = EncodingUTF8
		}
		res.Content = &content
		return res, nil
	case KindUpdate:
		return res, e.append(op)
	case KindDelete:
		return res, e.fs.Remove(op.Path)
	case KindCopy:
		res.Destination = op.Destination
		return res, e.copy(op)
	case KindMove:
		res.Destination = op.Destination
		return res, e.move(op)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedKind, op.Type)
	}
}

func (e *Executor) create(op Operation) error {
	data, err := op.Decode()
	if err != nil {
		return err
	}
	if err := e.ensureParent(op.Path); err != nil {
		return err
	}
	return util.WriteFile(e.fs, op.Path, data, filePerm)
}

func (e *Executor) read(op Operation) (string, error) {
	data, err := util.ReadFile(e.fs, op.Path)
	if err != nil {
		return "", err
	}
	return op.Encode(data), nil
}

func (e *Executor) append(op Operation) (err error) {
	data, err := op.Decode()
	if err != nil {
		return err
	}
	f, err := e.fs.OpenFile(op.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	_, err = f.Write(data)
	return err
}

func (e *Executor) copy(op Operation) (err error) {
	if op.Destination == "" {
		return ErrDestinationRequired
	}
	if err := e.ensureParent(op.Destination); err != nil {
		return err
	}

	src, err := e.fs.Open(op.Path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	// Create truncates, so copying a file onto itself would empty it.
	if e.sameFile(op.Path, op.Destination) {
		return nil
	}

	dst, err := e.fs.Create(op.Destination)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(dst, src)
	return err
}

func (e *Executor) move(op Operation) error {
	if op.Destination == "" {
		return ErrDestinationRequired
	}
	if err := e.ensureParent(op.Destination); err != nil {
		return err
	}
	return e.fs.Rename(op.Path, op.Destination)
}

// sameFile reports whether a and b name the same file, either by path or,
// on OS filesystems, by identity (hard links, symlinks, redundant path forms).
func (e *Executor) sameFile(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := e.fs.Stat(a)
	if err != nil {
		return false
	}
	bi, err := e.fs.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// ensureParent creates the directory chain above p.
func (e *Executor) ensureParent(p string) error {
	dir := filepath.Dir(p)
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	return e.fs.MkdirAll(dir, dirPerm)
}
