package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestStoreAdmitsUpToLimit(t *testing.T) {
	s := NewStore(100, 15*time.Minute)

	for i := 0; i < 100; i++ {
		d := s.Take("10.0.0.1")
		if !d.Allowed {
			t.Fatalf("request %d should be admitted", i+1)
		}
		if d.Remaining != 100-(i+1) {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, 100-(i+1), d.Remaining)
		}
	}

	d := s.Take("10.0.0.1")
	if d.Allowed {
		t.Error("101st request should be denied")
	}
	if d.Remaining != 0 {
		t.Errorf("expected remaining 0 on denial, got %d", d.Remaining)
	}
	if d.RetryAfter <= 0 {
		t.Errorf("expected positive RetryAfter on denial, got %s", d.RetryAfter)
	}
}

func TestStoreKeysAreIndependent(t *testing.T) {
	s := NewStore(1, time.Minute)

	if d := s.Take("10.0.0.1"); !d.Allowed {
		t.Error("first key should be admitted")
	}
	if d := s.Take("10.0.0.2"); !d.Allowed {
		t.Error("second key should not be affected by the first")
	}
	if d := s.Take("10.0.0.1"); d.Allowed {
		t.Error("first key should now be exhausted")
	}
}

func TestStoreWindowReset(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(2, time.Minute, WithClock(func() time.Time { return now }))

	s.Take("10.0.0.1")
	s.Take("10.0.0.1")
	if d := s.Take("10.0.0.1"); d.Allowed {
		t.Fatal("third request in window should be denied")
	}

	// Aging the window past its duration resets the counter entirely.
	now = now.Add(time.Minute)
	d := s.Take("10.0.0.1")
	if !d.Allowed {
		t.Error("request after window reset should be admitted")
	}
	if d.Remaining != 1 {
		t.Errorf("expected remaining 1 in fresh window, got %d", d.Remaining)
	}
}

// TestStoreWindowBoundaryBurst pins the fixed-window boundary behavior: a
// full window immediately followed by a fresh one admits 2x the capacity in
// a short span. This is the documented policy, not a bug.
func TestStoreWindowBoundaryBurst(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(100, 15*time.Minute, WithClock(func() time.Time { return now }))

	// Open the window, then spend the rest of its capacity just before the
	// boundary.
	if d := s.Take("10.0.0.1"); !d.Allowed {
		t.Fatal("opening request should be admitted")
	}
	now = now.Add(15*time.Minute - time.Second)
	for i := 0; i < 99; i++ {
		if d := s.Take("10.0.0.1"); !d.Allowed {
			t.Fatalf("request %d in first window should be admitted", i+2)
		}
	}

	// Cross the boundary: the counter resets wholesale, so another full
	// capacity lands within two seconds of the previous burst.
	now = now.Add(2 * time.Second)
	for i := 0; i < 100; i++ {
		if d := s.Take("10.0.0.1"); !d.Allowed {
			t.Fatalf("request %d in second window should be admitted", i+1)
		}
	}
}

func TestStoreResetHeaderValue(t *testing.T) {
	start := time.Unix(1000, 0)
	now := start
	s := NewStore(10, time.Minute, WithClock(func() time.Time { return now }))

	d := s.Take("10.0.0.1")
	if !d.Reset.Equal(start.Add(time.Minute)) {
		t.Errorf("expected reset at window start + duration, got %s", d.Reset)
	}

	// Reset time is stable across the window.
	now = now.Add(30 * time.Second)
	d = s.Take("10.0.0.1")
	if !d.Reset.Equal(start.Add(time.Minute)) {
		t.Errorf("reset time should not move within a window, got %s", d.Reset)
	}
}

func TestStoreConcurrentTakes(t *testing.T) {
	s := NewStore(1000, time.Minute)

	var wg sync.WaitGroup
	allowed := make([]bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			allowed[i] = s.Take("10.0.0.1").Allowed
		}(i)
	}
	wg.Wait()

	for i, ok := range allowed {
		if !ok {
			t.Errorf("concurrent request %d should be admitted", i)
		}
	}

	// Exactly 50 increments: the next take sees remaining == limit - 51.
	d := s.Take("10.0.0.1")
	if d.Remaining != 1000-51 {
		t.Errorf("expected remaining %d after 51 takes, got %d", 1000-51, d.Remaining)
	}
}

func TestStoreCleanup(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(10, time.Minute, WithClock(func() time.Time { return now }))

	s.Take("10.0.0.1")
	s.Take("10.0.0.2")
	if s.Len() != 2 {
		t.Fatalf("expected 2 tracked keys, got %d", s.Len())
	}

	now = now.Add(2 * time.Minute)
	s.Cleanup()

	if s.Len() != 0 {
		t.Errorf("expected expired windows to be swept, got %d", s.Len())
	}
}

func TestMemoryStats(t *testing.T) {
	stats := NewMemoryStats()

	stats.Record(context.Background(), Event{Key: "10.0.0.1", Allowed: true})
	stats.Record(context.Background(), Event{Key: "10.0.0.1", Allowed: true})
	stats.Record(context.Background(), Event{Key: "10.0.0.1", Allowed: false})

	allowed, denied := stats.Counts()
	if allowed != 2 {
		t.Errorf("expected 2 allowed, got %d", allowed)
	}
	if denied != 1 {
		t.Errorf("expected 1 denied, got %d", denied)
	}
}

func TestRedisStatsNilSafe(t *testing.T) {
	var s *RedisStats
	if err := s.Record(context.Background(), Event{Key: "10.0.0.1"}); err != nil {
		t.Errorf("nil RedisStats should be a no-op, got %v", err)
	}

	s = &RedisStats{}
	if err := s.Record(context.Background(), Event{Key: "10.0.0.1"}); err != nil {
		t.Errorf("RedisStats without client should be a no-op, got %v", err)
	}
}
