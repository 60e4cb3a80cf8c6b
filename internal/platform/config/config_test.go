package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("AUTHORITY_ADDRESS", "0x00000000000000000000000000000000000000aa")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "verification-updates", cfg.Kafka.Topic)
		assert.Empty(t, cfg.Kafka.Brokers)
		assert.Equal(t, time.Hour, cfg.Redis.CacheTTL)
		assert.Equal(t, 100, cfg.RateLimit.Requests)
		assert.Equal(t, time.Hour, cfg.RateLimit.Window)
		assert.Equal(t, 1024, cfg.NotifyBuffer)
		assert.True(t, cfg.DevSigningKey())
		assert.Empty(t, cfg.TrustedProxies)
	})

	t.Run("authority address is required", func(t *testing.T) {
		t.Setenv("AUTHORITY_ADDRESS", "")

		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("AUTHORITY_ADDRESS", "0x00000000000000000000000000000000000000aa")
		t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
		t.Setenv("REDIS_CACHE_TTL", "90s")
		t.Setenv("RATE_LIMIT_REQUESTS", "5")
		t.Setenv("SCORING_SERVICE_URL", "http://scorer:5000/")
		t.Setenv("JWT_SIGNING_KEY", "prod-key")
		t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 90*time.Second, cfg.Redis.CacheTTL)
		assert.Equal(t, 5, cfg.RateLimit.Requests)
		assert.Equal(t, "http://scorer:5000", cfg.ScoringURL)
		assert.False(t, cfg.DevSigningKey())
		assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.TrustedProxies)
	})

	t.Run("malformed duration", func(t *testing.T) {
		t.Setenv("AUTHORITY_ADDRESS", "0x00000000000000000000000000000000000000aa")
		t.Setenv("RATE_LIMIT_WINDOW", "soon")

		_, err := FromEnv()
		require.Error(t, err)
	})
}
