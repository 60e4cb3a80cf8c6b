package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"autoshield/internal/ratelimit/models"
)

// KeyPrefix namespaces rate limit keys in Redis.
const KeyPrefix = "autoshield:ratelimit:"

// RedisStore keeps fixed-window counters in Redis so every instance shares
// them. The first hit in a window sets its expiry.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	k := KeyPrefix + key
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit incr: %w", err)
	}

	count := incr.Val()
	remaining := ttl.Val()
	// PTTL is negative when the key has no expiry: either this hit created it
	// or a previous EXPIRE was lost.
	if count == 1 || remaining < 0 {
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return nil, fmt.Errorf("rate limit expire: %w", err)
		}
		remaining = window
	}

	now := s.now()
	return models.NewResult(int(count), limit, now.Add(remaining), now), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, KeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}
