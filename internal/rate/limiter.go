package rate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLimited = errors.New("too many requests; try again later")

// Limiter throttles nonce issuance per client key (IP).
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

type MemoryLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	buckets   map[string]*bucket
	nextSweep time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
}

func NewMemoryLimiter(window time.Duration, max int) *MemoryLimiter {
	return &MemoryLimiter{window: window, max: max, buckets: make(map[string]*bucket)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweepLocked(now)

	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(l.window)}
		return nil
	}
	b.count++
	if b.count > l.max {
		return ErrLimited
	}
	return nil
}

// sweepLocked drops expired buckets once per window. Keys are
// client-supplied (request IPs), so the map must not grow unbounded.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	l.nextSweep = now.Add(l.window)
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}

// RedisLimiter shares the counter across instances.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
	max    int
}

func NewRedisLimiter(client *redis.Client, window time.Duration, max int) *RedisLimiter {
	return &RedisLimiter{client: client, window: window, max: max}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	countKey := "rate:nonce:" + key
	count, err := l.client.Incr(ctx, countKey).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, countKey, l.window).Err(); err != nil {
			return err
		}
	}
	if int(count) > l.max {
		return ErrLimited
	}
	return nil
}
