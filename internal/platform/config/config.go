package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr             string
	LogLevel         string
	AuthorityAddress string
	JWTSigningKey    string
	JWTIssuer        string
	JWTTokenTTL      time.Duration
	DatabaseURL      string
	Redis            RedisConfig
	Kafka            KafkaConfig
	ScoringURL       string
	ScoringTimeout   time.Duration
	RateLimit        RateLimitConfig
	NotifyBuffer     int
	// TrustedProxies lists CIDRs or addresses whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means none.
	TrustedProxies []string
}

// RedisConfig holds connection settings for the shared Redis client.
// An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig holds producer settings. No brokers disables Kafka delivery.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RateLimitConfig bounds public analysis requests per client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:             envOr("AUTOSHIELD_ADDR", ":8080"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		AuthorityAddress: os.Getenv("AUTHORITY_ADDRESS"),
		// Use a default for development - should be overridden in production
		JWTSigningKey: envOr("JWT_SIGNING_KEY", devSigningKey),
		JWTIssuer:     envOr("JWT_ISSUER", "autoshield"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_TOPIC", "verification-updates"),
		},
		ScoringURL:     strings.TrimRight(os.Getenv("SCORING_SERVICE_URL"), "/"),
		TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
	}

	if cfg.AuthorityAddress == "" {
		return Server{}, errors.New("AUTHORITY_ADDRESS is required")
	}

	var err error
	if cfg.JWTTokenTTL, err = durationEnv("JWT_TOKEN_TTL", 15*time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.Redis.CacheTTL, err = durationEnv("REDIS_CACHE_TTL", time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.ScoringTimeout, err = durationEnv("SCORING_TIMEOUT", 10*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.RateLimit.Window, err = durationEnv("RATE_LIMIT_WINDOW", time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.RateLimit.Requests, err = intEnv("RATE_LIMIT_REQUESTS", 100); err != nil {
		return Server{}, err
	}
	if cfg.Redis.PoolSize, err = intEnv("REDIS_POOL_SIZE", cfg.Redis.PoolSize); err != nil {
		return Server{}, err
	}
	if cfg.NotifyBuffer, err = intEnv("NOTIFY_BUFFER", 1024); err != nil {
		return Server{}, err
	}

	return cfg, nil
}

// DevSigningKey reports whether the JWT key is the built-in development default.
func (s Server) DevSigningKey() bool {
	return s.JWTSigningKey == devSigningKey
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
