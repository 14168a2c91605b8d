package score

import (
	"sync"
	"time"
)

// Limiter enforces max calls per sliding 60-second window. Unlike a blocking
// limiter, Allow returns false when the window is exhausted so the caller can
// silently skip a scorer rather than stall the pipeline.
type Limiter struct {
	maxPerMinute int
	window       time.Duration
	mu           sync.Mutex
	callTimes    []time.Time
	timeNow      func() time.Time // injectable for testing
}

// NewLimiter creates a sliding-window rate limiter. maxPerMinute <= 0 means
// unlimited.
func NewLimiter(maxPerMinute int) *Limiter {
	return NewLimiterWithClock(maxPerMinute, time.Now)
}

// NewLimiterWithClock creates a rate limiter with an injectable clock.
func NewLimiterWithClock(maxPerMinute int, timeNow func() time.Time) *Limiter {
	return &Limiter{
		maxPerMinute: maxPerMinute,
		window:       60 * time.Second,
		timeNow:      timeNow,
	}
}

// Allow records and permits a call if capacity remains in the window.
func (l *Limiter) Allow() bool {
	if l.maxPerMinute <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeNow()
	l.removeExpired(now)

	if len(l.callTimes) >= l.maxPerMinute {
		return false
	}

	l.callTimes = append(l.callTimes, now)
	return true
}

// Stats returns calls in the current window and remaining capacity.
func (l *Limiter) Stats() (used, remaining int) {
	if l.maxPerMinute <= 0 {
		return 0, -1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.removeExpired(l.timeNow())
	used = len(l.callTimes)
	remaining = l.maxPerMinute - used
	if remaining < 0 {
		remaining = 0
	}
	return used, remaining
}

// removeExpired drops timestamps outside the window. Must hold l.mu.
func (l *Limiter) removeExpired(now time.Time) {
	cutoff := now.Add(-l.window)
	expired := 0
	for _, t := range l.callTimes {
		if !t.After(cutoff) {
			expired++
		} else {
			break
		}
	}
	l.callTimes = l.callTimes[expired:]
}
