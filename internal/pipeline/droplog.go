package pipeline

import (
	"sync"
	"time"
)

// dropLimiter allows one drop log line per reason per window and counts the
// lines it suppressed in between.
type dropLimiter struct {
	mu         sync.Mutex
	windowSize time.Duration
	last       map[string]time.Time
	suppressed map[string]uint64
}

func newDropLimiter(window time.Duration) *dropLimiter {
	if window <= 0 {
		window = 10 * time.Second
	}
	return &dropLimiter{
		windowSize: window,
		last:       make(map[string]time.Time),
		suppressed: make(map[string]uint64),
	}
}

// Allow reports whether a line for reason may be logged at now. When allowed,
// it also returns how many lines were suppressed since the previous one.
func (l *dropLimiter) Allow(reason string, now time.Time) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, seen := l.last[reason]
	if seen && now.Sub(last) < l.windowSize {
		l.suppressed[reason]++
		return 0, false
	}

	n := l.suppressed[reason]
	l.suppressed[reason] = 0
	l.last[reason] = now
	return n, true
}
