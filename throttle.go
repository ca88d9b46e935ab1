package blink

import (
	"sync"
	"time"
)

// Throttle gates repeated invocations of expensive API operations. Each
// operation is identified by an explicit key (operation name plus target
// id), with the last-invocation time tracked per key. A call inside the
// minimum interval is suppressed unless forced; the caller receives the
// ErrThrottled sentinel and must treat it as "no new data", not a failure.
type Throttle struct {
	interval time.Duration

	mu   sync.Mutex
	last map[string]time.Time

	// now is swapped in tests.
	now func() time.Time
}

// NewThrottle creates a throttle with the given minimum interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether the operation identified by key may run now. When it
// may, the invocation time is recorded. force always allows and records.
func (t *Throttle) Allow(key string, force bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !force {
		if last, ok := t.last[key]; ok && now.Sub(last) < t.interval {
			return false
		}
	}

	t.last[key] = now

	return true
}
