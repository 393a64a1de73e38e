package rate

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds returns RetryAfter as whole seconds for the Retry-After header.
func (d Decision) RetryAfterSeconds() int64 {
	return ceilSeconds(d.RetryAfter)
}

// Counter consumes one hit from the fixed window identified by key.
type Counter interface {
	Consume(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

type windowEntry struct {
	count     int
	startedAt time.Time
	window    time.Duration
}

// Window is an in-process fixed-window counter table. Each process has its own
// view; use [RedisWindow] when several replicas must share limits.
type Window struct {
	mu   sync.Mutex
	hits map[string]*windowEntry
	now  func() time.Time
}

// NewWindow returns an empty [Window]. A nil clock means time.Now.
func NewWindow(now func() time.Time) *Window {
	if now == nil {
		now = time.Now
	}
	return &Window{hits: make(map[string]*windowEntry), now: now}
}

// Consume records a hit for key. Denied hits do not extend the window.
func (w *Window) Consume(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{}, ErrInvalidRule
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evictLocked(now)

	entry, ok := w.hits[key]
	if !ok || now.Sub(entry.startedAt) >= window {
		w.hits[key] = &windowEntry{count: 1, startedAt: now, window: window}
		return Decision{Allowed: true, Remaining: max(limit-1, 0)}, nil
	}

	if entry.count >= limit {
		remaining := window - now.Sub(entry.startedAt)
		return Decision{Allowed: false, RetryAfter: retryDelay(remaining)}, nil
	}

	entry.count++
	return Decision{Allowed: true, Remaining: max(limit-entry.count, 0)}, nil
}

// Len returns the number of tracked keys, including ones not yet evicted.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits)
}

func (w *Window) evictLocked(now time.Time) {
	for key, entry := range w.hits {
		if now.Sub(entry.startedAt) >= entry.window {
			delete(w.hits, key)
		}
	}
}

// retryDelay rounds up to whole seconds with a one second floor.
func retryDelay(remaining time.Duration) time.Duration {
	sec := ceilSeconds(remaining)
	if sec < 1 {
		sec = 1
	}
	return time.Duration(sec) * time.Second
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	return sec
}
