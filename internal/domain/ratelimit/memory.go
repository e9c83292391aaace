package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Entry tracks one client's usage within the current window.
type Entry struct {
	Count   int
	ResetAt time.Time
}

type memoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*Entry
	max     int
	window  time.Duration
	now     func() time.Time
}

// NewMemory builds a process-local limiter guarded by a mutex.
func NewMemory(cfg Config) Limiter {
	return newMemory(cfg, time.Now)
}

func newMemory(cfg Config, now func() time.Time) *memoryLimiter {
	window := cfg.Window
	if window <= 0 {
		window = time.Hour
	}
	return &memoryLimiter{
		entries: make(map[string]*Entry),
		max:     cfg.MaxRequests,
		window:  window,
		now:     now,
	}
}

func (l *memoryLimiter) Check(_ context.Context, identity string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	entry, ok := l.entries[identity]
	if !ok || now.After(entry.ResetAt) {
		entry = &Entry{Count: 1, ResetAt: now.Add(l.window)}
		l.entries[identity] = entry
		return Decision{
			Allowed:   l.max > 0,
			Remaining: max(l.max-1, 0),
			ResetAt:   entry.ResetAt,
		}, nil
	}

	if entry.Count >= l.max {
		return Decision{Allowed: false, Remaining: 0, ResetAt: entry.ResetAt}, nil
	}

	entry.Count++
	return Decision{
		Allowed:   true,
		Remaining: l.max - entry.Count,
		ResetAt:   entry.ResetAt,
	}, nil
}

// sweep drops expired entries. Caller holds l.mu.
func (l *memoryLimiter) sweep(now time.Time) {
	for id, entry := range l.entries {
		if now.After(entry.ResetAt) {
			delete(l.entries, id)
		}
	}
}

func (l *memoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *memoryLimiter) Close(context.Context) error {
	l.mu.Lock()
	l.entries = make(map[string]*Entry)
	l.mu.Unlock()
	return nil
}
