package fileops

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultBackoffUnit is the wait before the first retry. The n-th retry
// waits n units.
const DefaultBackoffUnit = time.Second

// linearBackOff waits unit, 2*unit, 3*unit, ... between attempts.
type linearBackOff struct {
	unit    time.Duration
	retries int
}

var _ backoff.BackOff = (*linearBackOff)(nil)

func newLinearBackOff(unit time.Duration) *linearBackOff {
	return &linearBackOff{unit: unit}
}

// NextBackOff returns the wait before the next retry.
func (b *linearBackOff) NextBackOff() time.Duration {
	b.retries++
	return time.Duration(b.retries) * b.unit
}

// Reset restarts the sequence at one unit.
func (b *linearBackOff) Reset() {
	b.retries = 0
}
