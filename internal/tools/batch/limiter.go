package batch

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/teemow/batchfs/internal/instrumentation"
)

// Limiter caps the number of operations in flight during one batch run.
// Waiters are admitted in the order they called Acquire.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
	active   atomic.Int64
	peak     atomic.Int64
	metrics  *instrumentation.Metrics
}

// NewLimiter returns a Limiter admitting at most capacity holders.
// A capacity below one is treated as one. metrics may be nil.
func NewLimiter(capacity int, metrics *instrumentation.Metrics) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
		metrics:  metrics,
	}
}

// Acquire blocks until a slot is free or ctx is done.
// Every successful Acquire must be paired with a Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	// semaphore.Acquire may succeed on a done context when a slot is free.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	n := l.active.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	l.metrics.IncrementInflight(ctx)
	return nil
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	l.metrics.DecrementInflight(context.Background())
	l.sem.Release(1)
}

// Capacity returns the maximum number of concurrent holders.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// Active returns the number of current holders.
func (l *Limiter) Active() int {
	return int(l.active.Load())
}

// Peak returns the highest number of concurrent holders seen.
func (l *Limiter) Peak() int {
	return int(l.peak.Load())
}
