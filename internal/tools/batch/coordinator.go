package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/batchfs/internal/fileops"
	"github.com/teemow/batchfs/internal/instrumentation"
	"github.com/teemow/batchfs/internal/logging"
)

// ErrStopped is the cancellation cause once an operation fails in a batch
// run with StopOnError set.
var ErrStopped = errors.New("batch stopped after an operation failed")

// State is the lifecycle state of a batch run.
type State string

// Batch run states.
const (
	StatePending      State = "pending"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateStoppedEarly State = "stopped_early"
)

// OperationExecutor runs a single file operation with retries.
// *fileops.Executor implements it.
type OperationExecutor interface {
	Execute(ctx context.Context, op fileops.Operation, retryAttempts int) (*fileops.Result, error)
}

// Coordinator runs batches: it groups operations, admits them through a
// Limiter and aggregates their outcomes.
type Coordinator struct {
	exec    OperationExecutor
	logger  logging.Logger
	metrics *instrumentation.Metrics
	newID   func() string
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithMetrics records batch metrics and in-flight counts to m.
func WithMetrics(m *instrumentation.Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithIDGenerator overrides how batch IDs are generated.
func WithIDGenerator(fn func() string) CoordinatorOption {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewCoordinator creates a Coordinator. A nil logger logs to slog.Default.
func NewCoordinator(exec OperationExecutor, logger logging.Logger, opts ...CoordinatorOption) *Coordinator {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	c := &Coordinator{
		exec:   exec,
		logger: logger,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// batchRun holds the per-request state of one Run call.
type batchRun struct {
	id       string
	req      *Request
	logger   logging.Logger
	limiter  *Limiter
	outcomes []*Outcome

	// schedCtx gates scheduling and is cancelled by ErrStopped or the
	// deadline. execCtx only ends at the deadline.
	schedCtx context.Context
	execCtx  context.Context
	stop     context.CancelCauseFunc

	mu    sync.Mutex
	state State
}

func (r *batchRun) transition(to State) {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.mu.Unlock()
	r.logger.Debug("batch state changed", logging.KeyBatchID, r.id, "from", from, "to", to)
}

func (r *batchRun) stopped() bool {
	return errors.Is(context.Cause(r.schedCtx), ErrStopped)
}

// Run executes req and returns its summary. Operation failures never fail
// the run; they are recorded in the summary.
//
// Groups run one after another. Within a group, operations start in input
// order as limiter slots free up, and the group settles before the next one
// starts. The limiter is shared by all groups. With StopOnError, the first
// failure stops scheduling; operations already running finish and are
// recorded. When the batch deadline passes, operations not yet started are
// recorded as TIMEOUT failures; when ctx is cancelled they are recorded as
// EXECUTION_FAILED.
func (c *Coordinator) Run(ctx context.Context, req *Request) *Summary {
	start := time.Now()
	run := &batchRun{
		id:       c.newID(),
		req:      req,
		logger:   c.logger,
		limiter:  NewLimiter(req.Options.MaxConcurrent, c.metrics),
		outcomes: make([]*Outcome, len(req.Operations)),
		state:    StatePending,
	}

	ctx, span := instrumentation.StartBatchSpan(ctx,
		instrumentation.NewSpanAttributeBuilder().
			WithBatch(run.id, len(req.Operations), req.Options.MaxConcurrent).
			Build()...)
	defer span.End()

	c.logger.Info("batch started",
		logging.KeyBatchID, run.id,
		"operations", len(req.Operations),
		"max_concurrent", req.Options.MaxConcurrent,
		"timeout_ms", req.Options.TimeoutMs,
		"stop_on_error", req.Options.StopOnError,
		"retry_attempts", req.Options.RetryAttempts,
		"group_by_type", req.Options.GroupByType)

	execCtx, cancel := context.WithTimeout(ctx, req.Options.Timeout())
	defer cancel()
	schedCtx, stop := context.WithCancelCause(execCtx)
	defer stop(nil)
	run.execCtx, run.schedCtx, run.stop = execCtx, schedCtx, stop

	run.transition(StateRunning)

	groups := groupIndices(req.Operations, req.Options.GroupByType)
	for i, group := range groups {
		if run.stopped() {
			c.logger.Info("skipping remaining groups",
				logging.KeyBatchID, run.id,
				"skipped_groups", len(groups)-i)
			break
		}
		c.runGroup(run, group)
	}

	final := StateCompleted
	if run.stopped() {
		final = StateStoppedEarly
	}
	run.transition(final)

	summary := summarize(run.outcomes)
	summary.BatchID = run.id
	summary.State = final
	summary.DurationMs = time.Since(start).Milliseconds()

	if summary.Failed > 0 {
		instrumentation.SetSpanError(span, fmt.Errorf("%d of %d operations failed", summary.Failed, summary.Total))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordBatch(ctx, string(final), summary.Total)

	c.logger.Info("batch finished",
		logging.KeyBatchID, run.id,
		"state", final,
		"total", summary.Total,
		"attempted", summary.Attempted,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"duration_ms", summary.DurationMs)
	c.logger.Debug("batch summary", logging.KeyBatchID, run.id, "summary", summary)

	return summary
}

// runGroup schedules every operation of group and waits for them to settle.
func (c *Coordinator) runGroup(run *batchRun, group []int) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for _, idx := range group {
		op := run.req.Operations[idx]

		if err := run.limiter.Acquire(run.schedCtx); err != nil {
			if run.stopped() {
				return
			}
			run.outcomes[idx] = NewFailureOutcome(op, notStarted(run.schedCtx, op, err))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer run.limiter.Release()
			run.outcomes[idx] = c.execute(run, op)
		}()
	}
}

// notStarted describes an operation the limiter never admitted because the
// batch deadline passed or the caller cancelled the run.
func notStarted(ctx context.Context, op fileops.Operation, err error) *fileops.Error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = err
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return &fileops.Error{
			Code: fileops.CodeTimeout,
			Kind: op.Type,
			Path: op.Path,
			Err:  fmt.Errorf("not started before the batch deadline: %w", cause),
		}
	}
	return &fileops.Error{
		Code: fileops.CodeExecutionFailed,
		Kind: op.Type,
		Path: op.Path,
		Err:  fmt.Errorf("not started, batch cancelled: %w", cause),
	}
}

// execute runs one operation and converts its result into an Outcome.
func (c *Coordinator) execute(run *batchRun, op fileops.Operation) (outcome *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = c.fail(run, op, fmt.Errorf("operation panicked: %v", r))
		}
	}()

	res, err := c.exec.Execute(run.execCtx, op, run.req.Options.RetryAttempts)
	if err != nil {
		return c.fail(run, op, err)
	}
	return NewSuccessOutcome(op, res)
}

func (c *Coordinator) fail(run *batchRun, op fileops.Operation, err error) *Outcome {
	c.logger.Warn("operation failed",
		logging.KeyBatchID, run.id,
		logging.KeyType, op.Type,
		logging.KeyPath, op.Path,
		logging.KeyError, err.Error())
	if run.req.Options.StopOnError {
		run.stop(ErrStopped)
	}
	return NewFailureOutcome(op, err)
}
