package nonce

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares nonces across instances. GETDEL gives the atomic
// consume; a short-lived tombstone key distinguishes a replay from an
// unknown value.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, window time.Duration) *RedisStore {
	// Keys live two windows so a late consume still reads as expired.
	return &RedisStore{client: client, ttl: 2 * window}
}

func nonceKey(value string) string { return "nonce:" + value }
func usedKey(value string) string  { return "nonce:used:" + value }

func (s *RedisStore) Save(ctx context.Context, value string, issuedAt time.Time) error {
	ok, err := s.client.SetNX(ctx, nonceKey(value), strconv.FormatInt(issuedAt.UnixNano(), 10), s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("nonce collision for %s", value[:8])
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, value string) (time.Time, error) {
	raw, err := s.client.GetDel(ctx, nonceKey(value)).Result()
	if err == redis.Nil {
		used, uerr := s.client.Exists(ctx, usedKey(value)).Result()
		if uerr != nil {
			return time.Time{}, uerr
		}
		if used > 0 {
			return time.Time{}, ErrReplayed
		}
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}

	if err := s.client.Set(ctx, usedKey(value), "1", s.ttl).Err(); err != nil {
		return time.Time{}, err
	}

	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt nonce payload: %w", err)
	}
	return time.Unix(0, nanos), nil
}

// Sweep is a no-op: Redis key TTLs handle expiry.
func (s *RedisStore) Sweep(context.Context, time.Time) error { return nil }
