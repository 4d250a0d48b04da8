package gesture

import (
	"sync"
	"time"
)

// DefaultMinInterval is the minimum spacing between stream-driven classifications.
const DefaultMinInterval = 6 * time.Second

// Throttle enforces a minimum interval between accepted attempts.
// A zero last time is always eligible.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewThrottle creates a throttle. A negative interval is treated as zero.
func NewThrottle(interval time.Duration) *Throttle {
	if interval < 0 {
		interval = 0
	}
	return &Throttle{interval: interval}
}

// Allow reports whether an attempt at now is outside the window.
// Exactly one interval after the last mark is allowed.
func (t *Throttle) Allow(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last.IsZero() {
		return true
	}
	return now.Sub(t.last) >= t.interval
}

// Mark records an accepted attempt.
func (t *Throttle) Mark(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = now
}

// Last returns the time of the last accepted attempt.
func (t *Throttle) Last() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Remaining returns how long until Allow would succeed.
func (t *Throttle) Remaining(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last.IsZero() {
		return 0
	}
	if left := t.interval - now.Sub(t.last); left > 0 {
		return left
	}
	return 0
}

// Reset forgets the last mark.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = time.Time{}
}
