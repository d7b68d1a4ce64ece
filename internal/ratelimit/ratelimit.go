package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a fixed-window counter per key. Windows start on the first
// request of a key and reset once the window has fully elapsed; memory is
// reclaimed through Prune.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*entry
}

type entry struct {
	count int
	start time.Time
}

func New(limit int, window time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &Limiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*entry),
	}
}

// Allow reports whether the key may proceed. When denied, the second
// return value is the time until the current window expires.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, ok := l.entries[key]
	if !ok || now.Sub(e.start) >= l.window {
		l.entries[key] = &entry{count: 1, start: now}
		return true, 0
	}

	if e.count < l.limit {
		e.count++
		return true, 0
	}

	return false, e.start.Add(l.window).Sub(now)
}

// Prune drops entries whose window has expired and returns how many were
// removed.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range l.entries {
		if now.Sub(e.start) >= l.window {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}
