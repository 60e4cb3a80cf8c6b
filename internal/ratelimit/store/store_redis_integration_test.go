//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"autoshield/internal/ratelimit/store"
	"autoshield/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestFixedWindow() {
	ctx := context.Background()
	for i := range 3 {
		result, err := s.store.Allow(ctx, "ip:analysis:10.0.0.1", 3, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(2-i, result.Remaining)
	}
	result, err := s.store.Allow(ctx, "ip:analysis:10.0.0.1", 3, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Positive(result.RetryAfter)

	ttl, err := s.redis.Client.PTTL(ctx, store.KeyPrefix+"ip:analysis:10.0.0.1").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisStoreSuite) TestExpiryStartsNewWindow() {
	ctx := context.Background()
	for range 2 {
		_, err := s.store.Allow(ctx, "ip:analysis:short", 1, 200*time.Millisecond)
		s.Require().NoError(err)
	}
	time.Sleep(300 * time.Millisecond)

	result, err := s.store.Allow(ctx, "ip:analysis:short", 1, 200*time.Millisecond)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RedisStoreSuite) TestMissingExpiryIsRepaired() {
	ctx := context.Background()
	key := store.KeyPrefix + "ip:analysis:noexpiry"
	s.Require().NoError(s.redis.Client.Set(ctx, key, 1, 0).Err())

	_, err := s.store.Allow(ctx, "ip:analysis:noexpiry", 5, time.Minute)
	s.Require().NoError(err)

	ttl, err := s.redis.Client.PTTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}
