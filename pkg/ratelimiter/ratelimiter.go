// Package ratelimiter provides the sliding-window limiter applied to
// expensive writes. The window state lives in Redis so the limit holds
// across instances; the in-memory implementation exists for tests and
// single-node development only.
package ratelimiter

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter answers whether one more operation is allowed for key right now,
// recording it when allowed. retryAfter is meaningful only when allowed is
// false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimitError carries the retry hint so handlers can set Retry-After.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// UserKey builds the per-user window key shared by all rate-limited writes.
func UserKey(userID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:user:%s", userID.String())
}

type redisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter returns a Redis-backed sliding-window limiter. A nil
// client disables limiting entirely (dev mode without Redis).
func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) Limiter {
	return &redisLimiter{rdb: rdb, limit: limit, window: window}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l.rdb == nil {
		return true, 0, nil
	}

	now := time.Now()
	windowStart := now.Add(-l.window)

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixMilli(), 10))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}

	if countCmd.Val() >= int64(l.limit) {
		retry := l.window
		oldest, err := l.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			retry = time.UnixMilli(int64(oldest[0].Score)).Add(l.window).Sub(now)
			if retry < 0 {
				retry = 0
			}
		}
		return false, retry, nil
	}

	pipe = l.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: now.UnixNano(),
	})
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit record failed: %w", err)
	}

	return true, 0, nil
}

type memoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string][]time.Time
	now     func() time.Time
}

// NewMemoryLimiter keeps window state in process memory. Not safe for
// multi-instance deployments sharing one limit.
func NewMemoryLimiter(limit int, window time.Duration) Limiter {
	return &memoryLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	// Evict keys whose newest timestamp fell out of the window; without
	// this the map grows with every key ever seen.
	for k, ts := range l.entries {
		if len(ts) == 0 || !ts[len(ts)-1].After(windowStart) {
			delete(l.entries, k)
		}
	}

	kept := l.entries[key][:0]
	for _, t := range l.entries[key] {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	// Drop fully expired keys so idle users do not accumulate forever.
	if len(kept) == 0 {
		delete(l.entries, key)
	} else {
		l.entries[key] = kept
	}

	if len(kept) >= l.limit {
		retry := kept[0].Add(l.window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return false, retry, nil
	}

	l.entries[key] = append(kept, now)
	return true, 0, nil
}
