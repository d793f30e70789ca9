// Package ratelimit implements a fixed-window request counter, one window per
// caller key. It is a best-effort, single-process guard: no token-bucket
// smoothing and no cross-process coordination.
package ratelimit

import (
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	length  time.Duration
	now     func() time.Time // overridable in tests
}

func NewLimiter(limit int, length time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		length:  length,
		now:     time.Now,
	}
}

// Allow counts a request for the caller key. Once the count exceeds the limit
// within the current window every further request is rejected until the window
// elapses, at which point the counter resets to 1 for the triggering request.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.length {
		l.windows[key] = &window{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= l.limit
}
