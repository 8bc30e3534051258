package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/batchfs/internal/fileops"
	"github.com/teemow/batchfs/internal/logging"
)

// fakeExecutor runs fn for every operation and tracks concurrency.
type fakeExecutor struct {
	fn func(ctx context.Context, op fileops.Operation) error

	calls   atomic.Int64
	current atomic.Int64
	peak    atomic.Int64
	retries atomic.Int64

	mu       sync.Mutex
	inflight map[fileops.Kind]int
	overlap  bool
}

func (f *fakeExecutor) Execute(ctx context.Context, op fileops.Operation, retryAttempts int) (*fileops.Result, error) {
	f.calls.Add(1)
	f.retries.Store(int64(retryAttempts))

	f.mu.Lock()
	if f.inflight == nil {
		f.inflight = make(map[fileops.Kind]int)
	}
	for kind, n := range f.inflight {
		if kind != op.Type && n > 0 {
			f.overlap = true
		}
	}
	f.inflight[op.Type]++
	f.mu.Unlock()

	n := f.current.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer func() {
		f.current.Add(-1)
		f.mu.Lock()
		f.inflight[op.Type]--
		f.mu.Unlock()
	}()

	if f.fn != nil {
		if err := f.fn(ctx, op); err != nil {
			return nil, err
		}
	}
	return &fileops.Result{Type: op.Type, Path: op.Path, Success: true, Attempt: 1}, nil
}

func discardLogger() logging.Logger {
	return logging.NewSlogAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newRequest(opts Options, specs ...string) *Request {
	return &Request{Operations: ops(specs...), Options: opts}
}

func assertCounts(t *testing.T, s *Summary) {
	t.Helper()
	assert.Equal(t, s.Attempted, s.Successful+s.Failed)
	assert.LessOrEqual(t, s.Attempted, s.Total)
	assert.Len(t, s.Results, s.Successful)
	assert.Len(t, s.Errors, s.Failed)
}

func TestCoordinator_MixedOutcome(t *testing.T) {
	fsys := fileops.NewMemoryFilesystem()
	exec := fileops.NewExecutor(fsys, fileops.WithBackoffUnit(time.Millisecond))
	c := NewCoordinator(exec, discardLogger())

	req, err := NewValidator().Parse(map[string]any{
		"operations": []any{
			map[string]any{"type": "create", "path": "/tmp/a.txt", "content": "hi"},
			map[string]any{"type": "delete", "path": "/tmp/missing.txt"},
		},
		"options": map[string]any{"stopOnError": false},
	})
	require.NoError(t, err)

	s := c.Run(context.Background(), req)

	assertCounts(t, s)
	assert.Equal(t, StateCompleted, s.State)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 2, s.Attempted)
	assert.Equal(t, 1, s.Successful)
	assert.Equal(t, 1, s.Failed)

	require.Len(t, s.Results, 1)
	assert.Equal(t, "/tmp/a.txt", s.Results[0].Path)
	assert.True(t, s.Results[0].Success)

	require.Len(t, s.Errors, 1)
	assert.Equal(t, "/tmp/missing.txt", s.Errors[0].Operation.Path)
	assert.Equal(t, fileops.CodeNotFound, s.Errors[0].Code)
	assert.Equal(t, StatusFailed, s.Errors[0].Status)
	assert.NotEmpty(t, s.Errors[0].Error)

	data, err := util.ReadFile(fsys, "/tmp/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestCoordinator_ConcurrencyBound(t *testing.T) {
	for _, maxConcurrent := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("max_%d", maxConcurrent), func(t *testing.T) {
			exec := &fakeExecutor{fn: func(ctx context.Context, op fileops.Operation) error {
				time.Sleep(3 * time.Millisecond)
				return nil
			}}
			c := NewCoordinator(exec, discardLogger())

			var specs []string
			for i := 0; i < 30; i++ {
				kind := fileops.Kinds[i%3]
				specs = append(specs, string(kind), fmt.Sprintf("/f%d", i))
			}
			opts := DefaultOptions()
			opts.MaxConcurrent = maxConcurrent

			s := c.Run(context.Background(), newRequest(opts, specs...))

			assertCounts(t, s)
			assert.Equal(t, 30, s.Successful)
			assert.LessOrEqual(t, exec.peak.Load(), int64(maxConcurrent))
			assert.False(t, exec.overlap, "operations of different groups ran at the same time")
		})
	}
}

func TestCoordinator_StopOnErrorSkipsLaterGroups(t *testing.T) {
	exec := &fakeExecutor{fn: func(ctx context.Context, op fileops.Operation) error {
		if op.Type == fileops.KindDelete {
			return fileops.NewError(op, fmt.Errorf("remove %s: %w", op.Path, os.ErrNotExist))
		}
		return nil
	}}
	c := NewCoordinator(exec, discardLogger())

	opts := DefaultOptions()
	opts.StopOnError = true
	s := c.Run(context.Background(), newRequest(opts,
		"delete", "/missing",
		"read", "/x",
		"read", "/y",
	))

	assertCounts(t, s)
	assert.Equal(t, StateStoppedEarly, s.State)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Attempted)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, int64(1), exec.calls.Load())
	assert.Equal(t, fileops.CodeNotFound, s.Errors[0].Code)
}

func TestCoordinator_StopOnErrorWithinGroup(t *testing.T) {
	exec := &fakeExecutor{fn: func(ctx context.Context, op fileops.Operation) error {
		if op.Path == "/a" {
			return errors.New("disk full")
		}
		return nil
	}}
	c := NewCoordinator(exec, discardLogger())

	opts := DefaultOptions()
	opts.StopOnError = true
	opts.MaxConcurrent = 1
	s := c.Run(context.Background(), newRequest(opts,
		"create", "/a",
		"create", "/b",
		"create", "/c",
	))

	assertCounts(t, s)
	assert.Equal(t, StateStoppedEarly, s.State)
	assert.Equal(t, 1, s.Attempted)
	assert.Equal(t, fileops.CodeExecutionFailed, s.Errors[0].Code)
	assert.Contains(t, s.Errors[0].Error, "disk full")
}

func TestCoordinator_ContinueOnError(t *testing.T) {
	exec := &fakeExecutor{fn: func(ctx context.Context, op fileops.Operation) error {
		if op.Type == fileops.KindDelete {
			return errors.New("boom")
		}
		return nil
	}}
	c := NewCoordinator(exec, discardLogger())

	s := c.Run(context.Background(), newRequest(DefaultOptions(),
		"delete", "/a",
		"read", "/b",
		"delete", "/c",
		"read", "/d",
	))

	assertCounts(t, s)
	assert.Equal(t, StateCompleted, s.State)
	assert.Equal(t, 4, s.Attempted)
	assert.Equal(t, 2, s.Successful)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, "/a", s.Errors[0].Operation.Path)
	assert.Equal(t, "/c", s.Errors[1].Operation.Path)
}

func TestCoordinator_Deadline(t *testing.T) {
	exec := &fakeExecutor{fn: func(ctx context.Context, op fileops.Operation) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	c := NewCoordinator(exec, discardLogger())

	opts := DefaultOptions()
	opts.MaxConcurrent = 1
	opts.TimeoutMs = 50
	s := c.Run(context.Background(), newRequest(opts,
		"create", "/a",
		"create", "/b",
		"create", "/c",
	))

	assertCounts(t, s)
	assert.Equal(t, StateCompleted, s.State)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 3, s.Failed)
	assert.Equal(t, int64(1), exec.calls.Load())
	for i, e := range s.Errors {
		assert.Equal(t, fileops.CodeTimeout, e.Code, "error %d", i)
	}
	assert.Equal(t, "/a", s.Errors[0].Operation.Path)
	assert.Contains(t, s.Errors[1].Error, "not started before the batch deadline")
}

func TestCoordinator_ParentCancelled(t *testing.T) {
	exec := &fakeExecutor{}
	c := NewCoordinator(exec, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := c.Run(ctx, newRequest(DefaultOptions(), "read", "/a", "read", "/b"))

	assertCounts(t, s)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, int64(0), exec.calls.Load())
	for _, f := range s.Errors {
		assert.Equal(t, fileops.CodeExecutionFailed, f.Code)
		assert.Contains(t, f.Error, "batch cancelled")
		assert.NotContains(t, f.Error, "deadline")
	}
}

func TestCoordinator_RecoversPanics(t *testing.T) {
	exec := &fakeExecutor{fn: func(ctx context.Context, op fileops.Operation) error {
		if op.Path == "/boom" {
			panic("unexpected state")
		}
		return nil
	}}
	c := NewCoordinator(exec, discardLogger())

	s := c.Run(context.Background(), newRequest(DefaultOptions(),
		"read", "/ok",
		"read", "/boom",
		"create", "/fine",
	))

	assertCounts(t, s)
	assert.Equal(t, 2, s.Successful)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, "/boom", s.Errors[0].Operation.Path)
	assert.Equal(t, fileops.CodeExecutionFailed, s.Errors[0].Code)
	assert.Contains(t, s.Errors[0].Error, "panicked")
}

func TestCoordinator_ResultsInInputOrder(t *testing.T) {
	for _, groupByType := range []bool{true, false} {
		t.Run(fmt.Sprintf("group_by_type_%v", groupByType), func(t *testing.T) {
			paths := []string{"/a", "/b", "/c", "/d", "/e", "/f"}
			delay := map[string]time.Duration{}
			for i, p := range paths {
				delay[p] = time.Duration(len(paths)-i) * 3 * time.Millisecond
			}
			exec := &fakeExecutor{fn: func(ctx context.Context, op fileops.Operation) error {
				time.Sleep(delay[op.Path])
				if op.Path == "/b" || op.Path == "/e" {
					return errors.New("failed")
				}
				return nil
			}}
			c := NewCoordinator(exec, discardLogger())

			opts := DefaultOptions()
			opts.GroupByType = groupByType
			s := c.Run(context.Background(), newRequest(opts,
				"read", "/a",
				"create", "/b",
				"read", "/c",
				"update", "/d",
				"create", "/e",
				"read", "/f",
			))

			var got []string
			for _, r := range s.Results {
				got = append(got, r.Path)
			}
			assert.Equal(t, []string{"/a", "/c", "/d", "/f"}, got)
			require.Len(t, s.Errors, 2)
			assert.Equal(t, "/b", s.Errors[0].Operation.Path)
			assert.Equal(t, "/e", s.Errors[1].Operation.Path)
		})
	}
}

func TestCoordinator_ReadsAreIdempotent(t *testing.T) {
	fsys := fileops.NewMemoryFilesystem()
	require.NoError(t, util.WriteFile(fsys, "/data/notes.txt", []byte("hello"), 0o644))
	c := NewCoordinator(fileops.NewExecutor(fsys, fileops.WithBackoffUnit(time.Millisecond)), discardLogger())

	s := c.Run(context.Background(), newRequest(DefaultOptions(),
		"read", "/data/notes.txt",
		"read", "/data/notes.txt",
	))

	assertCounts(t, s)
	require.Len(t, s.Results, 2)
	for _, r := range s.Results {
		require.NotNil(t, r.Content)
		assert.Equal(t, "hello", *r.Content)
		assert.Equal(t, fileops.EncodingUTF8, r.Encoding)
	}

	data, err := util.ReadFile(fsys, "/data/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestCoordinator_PassesRetryAttempts(t *testing.T) {
	exec := &fakeExecutor{}
	c := NewCoordinator(exec, discardLogger())

	opts := DefaultOptions()
	opts.RetryAttempts = 3
	c.Run(context.Background(), newRequest(opts, "read", "/a"))

	assert.Equal(t, int64(3), exec.retries.Load())
}

func TestCoordinator_RetriesWithRealExecutor(t *testing.T) {
	fsys := fileops.NewMemoryFilesystem()
	c := NewCoordinator(fileops.NewExecutor(fsys, fileops.WithBackoffUnit(time.Millisecond)), discardLogger())

	opts := DefaultOptions()
	opts.RetryAttempts = 2
	s := c.Run(context.Background(), newRequest(opts, "read", "/nope"))

	require.Len(t, s.Errors, 1)
	assert.Equal(t, fileops.CodeNotFound, s.Errors[0].Code)
}

func TestCoordinator_BatchID(t *testing.T) {
	c := NewCoordinator(&fakeExecutor{}, nil, WithIDGenerator(func() string { return "batch-1" }))

	s := c.Run(context.Background(), newRequest(DefaultOptions(), "read", "/a"))

	assert.Equal(t, "batch-1", s.BatchID)

	c = NewCoordinator(&fakeExecutor{}, discardLogger())
	s1 := c.Run(context.Background(), newRequest(DefaultOptions(), "read", "/a"))
	s2 := c.Run(context.Background(), newRequest(DefaultOptions(), "read", "/a"))
	assert.NotEmpty(t, s1.BatchID)
	assert.NotEqual(t, s1.BatchID, s2.BatchID)
}

func TestCoordinator_CountInvariants(t *testing.T) {
	tests := []struct {
		name        string
		stopOnError bool
		failPaths   map[string]bool
	}{
		{name: "all succeed", failPaths: map[string]bool{}},
		{name: "all fail", failPaths: map[string]bool{"/1": true, "/2": true, "/3": true, "/4": true, "/5": true}},
		{name: "some fail", failPaths: map[string]bool{"/2": true, "/4": true}},
		{name: "stop on first", stopOnError: true, failPaths: map[string]bool{"/1": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{fn: func(ctx context.Context, op fileops.Operation) error {
				if tt.failPaths[op.Path] {
					return errors.New("failed")
				}
				return nil
			}}
			c := NewCoordinator(exec, discardLogger())

			opts := DefaultOptions()
			opts.StopOnError = tt.stopOnError
			opts.MaxConcurrent = 2
			s := c.Run(context.Background(), newRequest(opts,
				"create", "/1", "read", "/2", "create", "/3", "delete", "/4", "read", "/5",
			))

			assertCounts(t, s)
			assert.Equal(t, 5, s.Total)
			if !tt.stopOnError {
				assert.Equal(t, 5, s.Attempted)
				assert.Equal(t, len(tt.failPaths), s.Failed)
			}
		})
	}
}
