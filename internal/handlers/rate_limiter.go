package handlers

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

type rateLimiter interface {
	// Take consumes one slot for key. When the key is exhausted it returns false and the time
	// remaining until the window resets.
	Take(key string) (bool, time.Duration)
}

// windowLimiter counts attempts per key in fixed windows. State is per instance.
type windowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]*attemptWindow
	sweepAt time.Time
}

type attemptWindow struct {
	used    int
	resetAt time.Time
}

func newWindowLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]*attemptWindow),
	}
}

func (l *windowLimiter) Take(key string) (bool, time.Duration) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if !now.Before(l.sweepAt) {
		for k, w := range l.windows {
			if !now.Before(w.resetAt) {
				delete(l.windows, k)
			}
		}
		l.sweepAt = now.Add(l.window)
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.windows[key] = &attemptWindow{used: 1, resetAt: now.Add(l.window)}
		return true, 0
	}
	if w.used >= l.limit {
		return false, w.resetAt.Sub(now)
	}
	w.used++
	return true, 0
}

// retryAfterSeconds renders a wait as a Retry-After value, rounding up to whole seconds.
func retryAfterSeconds(wait time.Duration) string {
	secs := int64(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
