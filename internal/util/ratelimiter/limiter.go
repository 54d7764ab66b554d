// Package ratelimiter throttles periodic side effects such as journal
// writes and plain-text progress lines.
package ratelimiter

import (
	"sync"
	"time"
)

// Limiter lets one action through per interval. The first call is always
// allowed. It is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	now         func() time.Time
	lastAllowed time.Time
}

// New creates a limiter allowing at most one action per interval
func New(interval time.Duration) *Limiter {
	return NewWithClock(interval, time.Now)
}

// NewWithClock is New with an injectable clock
func NewWithClock(interval time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		interval: interval,
		now:      now,
	}
}

// Allow reports whether an action may run now. When it may not, the second
// result is how long until it may.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.lastAllowed.IsZero() {
		l.lastAllowed = now
		return true, 0
	}

	elapsed := now.Sub(l.lastAllowed)
	if elapsed >= l.interval {
		l.lastAllowed = now
		return true, 0
	}
	return false, l.interval - elapsed
}

// Reset lets the next action through immediately
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.lastAllowed = time.Time{}
	l.mu.Unlock()
}

// Interval returns the configured interval
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
