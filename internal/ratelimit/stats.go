package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one rate-limit decision.
type Event struct {
	Key     string
	Allowed bool
	Method  string
	Path    string
	At      time.Time
}

// Recorder receives rate-limit decisions. Implementations must tolerate
// being called concurrently; recording failures are the caller's to log,
// never to surface into the request path.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// MemoryStats counts decisions in process. Useful for tests and as a
// fallback when no Redis backend is configured.
type MemoryStats struct {
	mu      sync.Mutex
	allowed int64
	denied  int64
}

// NewMemoryStats creates an empty in-process recorder.
func NewMemoryStats() *MemoryStats {
	return &MemoryStats{}
}

// Record implements Recorder.
func (s *MemoryStats) Record(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Allowed {
		s.allowed++
	} else {
		s.denied++
	}
	return nil
}

// Counts returns the allowed and denied totals.
func (s *MemoryStats) Counts() (allowed, denied int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowed, s.denied
}

// RedisStats records decisions into Redis hash counters: a cumulative total,
// a per-minute time series with TTL, and per-route counters.
type RedisStats struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisStatsOption configures a RedisStats.
type RedisStatsOption func(*RedisStats)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStats) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

// WithTTL sets the expiry applied to time-series keys. The cumulative total
// never expires.
func WithTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStats) { s.ttl = d }
}

// NewRedisStats creates a Redis-backed recorder.
func NewRedisStats(rdb *redis.Client, opts ...RedisStatsOption) *RedisStats {
	s := &RedisStats{
		rdb:    rdb,
		prefix: "backpropd:ratelimit",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements Recorder.
func (s *RedisStats) Record(ctx context.Context, ev Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	route := strings.TrimSpace(ev.Method + " " + ev.Path)
	if route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}
