package utils

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timestamper hands out strictly increasing timestamps truncated to the
// storage precision. Two writes in the same clock tick still get distinct,
// ordered times, so "sent after" always means "later timestamp".
type Timestamper struct {
	clock     clockwork.Clock
	precision time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewTimestamper(clock clockwork.Clock, precision time.Duration) *Timestamper {
	if precision <= 0 {
		precision = time.Microsecond
	}
	return &Timestamper{clock: clock, precision: precision}
}

// Next returns a timestamp strictly after every previously returned one.
func (t *Timestamper) Next() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now().UTC().Truncate(t.precision)
	if !now.After(t.last) {
		now = t.last.Add(t.precision)
	}
	t.last = now
	return now
}

// Clock returns the underlying clock.
func (t *Timestamper) Clock() clockwork.Clock {
	return t.clock
}
