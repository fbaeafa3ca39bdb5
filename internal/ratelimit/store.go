package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store is a fixed-window request counter keyed by client address.
//
// The window policy is deliberately a fixed window, not a sliding one: a
// window resets entirely once its start time ages past the duration, so up
// to twice the capacity can be admitted across a window boundary. That
// imprecision is part of the contract this limiter reproduces; do not
// replace it with a sliding interval.
type Store struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	duration time.Duration
	now      func() time.Time
}

type window struct {
	count int
	start time.Time
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed    bool
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source, used by tests to cross window
// boundaries deterministically.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a store admitting limit requests per key per window.
func NewStore(limit int, duration time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limit returns the per-window capacity.
func (s *Store) Limit() int { return s.limit }

// Window returns the window duration.
func (s *Store) Window() time.Duration { return s.duration }

// Take records one request for key and decides whether it is admitted.
// The count is committed even when the request is later aborted by the
// client; in-flight cancellation never unwinds quota.
func (s *Store) Take(key string) Decision {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= s.duration {
		w = &window{start: now}
		s.windows[key] = w
	}

	reset := w.start.Add(s.duration)

	if w.count >= s.limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: reset.Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Remaining: s.limit - w.count,
		Reset:     reset,
	}
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Cleanup drops windows whose reset time has passed.
func (s *Store) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, w := range s.windows {
		if now.Sub(w.start) >= s.duration {
			delete(s.windows, k)
		}
	}
}

// StartJanitor sweeps expired windows periodically until ctx is cancelled.
func (s *Store) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
