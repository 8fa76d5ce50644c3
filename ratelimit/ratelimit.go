// Package ratelimit implements fixed-window request limiting keyed by
// client identity. Windows are aligned to wall-clock multiples of the
// window length, so every key's window resets at the same instant.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Decision is the outcome of a rate-limit check. It carries everything
// the HTTP layer needs to populate X-RateLimit headers.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the configured maximum for the window.
	Limit int

	// Remaining is how many requests are left in the current window.
	Remaining int

	// ResetAt is when the current window ends.
	ResetAt time.Time

	// RetryAfter is how long to wait before retrying. Zero when
	// Allowed is true.
	RetryAfter time.Duration
}

// Store counts requests per key per window. Implementations must be
// safe for concurrent use. The in-memory store suffices for a single
// instance; a shared backend would implement the same interface.
type Store interface {
	// Increment records one request for key in the window containing
	// now and returns the updated count plus the window's end time.
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (count int, resetAt time.Time, err error)

	// Remove forgets all state for key.
	Remove(ctx context.Context, key string) error
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a Store backed by a mutex-protected map.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*windowEntry)}
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) (int, time.Time, error) {
	resetAt := now.Truncate(window).Add(window)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &windowEntry{resetAt: resetAt}
		s.entries[key] = entry
	}
	entry.count++
	return entry.count, entry.resetAt, nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Prune drops entries whose window ended before now.
func (s *MemoryStore) Prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if !now.Before(entry.resetAt) {
			delete(s.entries, key)
		}
	}
}

// Limiter enforces a fixed-window limit using a Store.
type Limiter struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	limit  int
	window time.Duration

	sweepDone chan struct{}
	closeOnce sync.Once
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LimiterOption {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		l.now = now
	}
}

// sweepInterval is how often expired in-memory windows are pruned.
const sweepInterval = 5 * time.Minute

// New creates a Limiter allowing limit requests per window per key.
// When store is a *MemoryStore, a background goroutine prunes expired
// windows until Close is called.
func New(store Store, limit int, window time.Duration, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:     store,
		logger:    slog.Default(),
		now:       time.Now,
		limit:     limit,
		window:    window,
		sweepDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	if mem, ok := store.(*MemoryStore); ok {
		go l.sweep(mem)
	}
	return l
}

func (l *Limiter) sweep(mem *MemoryStore) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mem.Prune(l.now())
		case <-l.sweepDone:
			return
		}
	}
}

// Close stops the background sweep. Safe to call multiple times.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		close(l.sweepDone)
	})
}

// UpdateLimits replaces the limit and window. Existing window counts
// are kept; they expire on their original schedule.
func (l *Limiter) UpdateLimits(limit int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = limit
	l.window = window
}

// Check records one request for key and decides whether it may
// proceed. Store failures fail open: the request is allowed and the
// error is logged, so a degraded store never blocks traffic.
func (l *Limiter) Check(ctx context.Context, key string) Decision {
	l.mu.RLock()
	limit, window := l.limit, l.window
	l.mu.RUnlock()

	now := l.now()
	count, resetAt, err := l.store.Increment(ctx, key, now, window)
	if err != nil {
		l.logger.Error("Rate limit store failed, allowing request", "key", key, "error", err)
		return Decision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetAt:   now.Add(window),
		}
	}

	d := Decision{
		Limit:   limit,
		ResetAt: resetAt,
	}
	if count <= limit {
		d.Allowed = true
		d.Remaining = limit - count
	} else {
		d.RetryAfter = resetAt.Sub(now)
	}
	return d
}

// Reset forgets all rate-limit state for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Remove(ctx, key)
}
