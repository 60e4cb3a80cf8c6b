package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoshield/internal/ratelimit/models"
	"autoshield/internal/ratelimit/store"
	"autoshield/pkg/platform/circuit"
	"autoshield/pkg/platform/middleware/metadata"
)

type failingLimiter struct{ calls int }

func (f *failingLimiter) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	f.calls++
	return nil, errors.New("redis: connection refused")
}

type toggleLimiter struct {
	fail  bool
	inner *store.InMemoryStore
}

func (l *toggleLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	if l.fail {
		return nil, errors.New("redis: i/o timeout")
	}
	return l.inner.Allow(ctx, key, limit, window)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/analysis", nil)
	req.RemoteAddr = ip + ":40000"
	rr := httptest.NewRecorder()
	metadata.ClientMetadata(h).ServeHTTP(rr, req)
	return rr
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestRateLimitIgnoresForgedForwardingHeaders(t *testing.T) {
	m := New(store.NewInMemory(), 2, time.Hour, discardLogger())
	h := m.RateLimit("analysis")(ok)

	t.Run("direct client rotating X-Forwarded-For", func(t *testing.T) {
		allowed := 0
		for i := range 50 {
			req := httptest.NewRequest(http.MethodPost, "/v1/analysis", nil)
			req.RemoteAddr = "203.0.113.7:40000"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
			rr := httptest.NewRecorder()
			metadata.ClientMetadata(h).ServeHTTP(rr, req)
			if rr.Code == http.StatusNoContent {
				allowed++
			}
		}
		assert.Equal(t, 2, allowed)
	})

	t.Run("clients behind a trusted proxy keep separate windows", func(t *testing.T) {
		resolver, err := metadata.NewResolver([]string{"10.10.0.0/16"})
		require.NoError(t, err)
		send := func(client string) int {
			req := httptest.NewRequest(http.MethodPost, "/v1/analysis", nil)
			req.RemoteAddr = "10.10.0.5:40000"
			req.Header.Set("X-Forwarded-For", client)
			rr := httptest.NewRecorder()
			resolver.Middleware(h).ServeHTTP(rr, req)
			return rr.Code
		}
		assert.Equal(t, http.StatusNoContent, send("192.0.2.1"))
		assert.Equal(t, http.StatusNoContent, send("192.0.2.1"))
		assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1"))
		assert.Equal(t, http.StatusNoContent, send("192.0.2.2"))
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("sets headers and rejects over the limit", func(t *testing.T) {
		m := New(store.NewInMemory(), 2, time.Hour, discardLogger())
		h := m.RateLimit("analysis")(ok)

		rr := serve(h, "10.0.0.1")
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Remaining"))

		serve(h, "10.0.0.1")
		rr = serve(h, "10.0.0.1")
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
		assert.Contains(t, rr.Body.String(), "rate_limit_exceeded")

		rr = serve(h, "10.0.0.2")
		assert.Equal(t, http.StatusNoContent, rr.Code, "other clients keep their own window")
	})

	t.Run("falls back to memory when the primary fails", func(t *testing.T) {
		primary := &failingLimiter{}
		m := New(primary, 1, time.Hour, discardLogger(), WithFallback(store.NewInMemory()))
		h := m.RateLimit("analysis")(ok)

		rr := serve(h, "10.0.0.1")
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "degraded", rr.Header().Get("X-RateLimit-Status"))

		rr = serve(h, "10.0.0.1")
		assert.Equal(t, http.StatusTooManyRequests, rr.Code, "fallback still enforces the limit")
		assert.Equal(t, 2, primary.calls)
	})

	t.Run("fails open without a fallback", func(t *testing.T) {
		m := New(&failingLimiter{}, 1, time.Hour, discardLogger())
		h := m.RateLimit("analysis")(ok)

		for range 3 {
			assert.Equal(t, http.StatusNoContent, serve(h, "10.0.0.1").Code)
		}
	})

	t.Run("stays degraded until the breaker closes", func(t *testing.T) {
		primary := &toggleLimiter{fail: true, inner: store.NewInMemory()}
		breaker := circuit.New("ratelimit-test", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(2))
		m := New(primary, 100, time.Hour, discardLogger(),
			WithFallback(store.NewInMemory()),
			WithBreaker(breaker),
		)
		h := m.RateLimit("analysis")(ok)

		serve(h, "10.0.0.1")
		require.True(t, breaker.IsOpen())

		primary.fail = false
		assert.Equal(t, "degraded", serve(h, "10.0.0.1").Header().Get("X-RateLimit-Status"))
		assert.Empty(t, serve(h, "10.0.0.1").Header().Get("X-RateLimit-Status"))
		assert.False(t, breaker.IsOpen())
	})

	t.Run("disabled passes everything through", func(t *testing.T) {
		m := New(&failingLimiter{}, 0, time.Hour, discardLogger(), WithDisabled(true))
		rr := serve(m.RateLimit("analysis")(ok), "10.0.0.1")
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	})
}

func TestIPKeySanitizesIPv6(t *testing.T) {
	assert.Equal(t, "ip:analysis:2001_db8__1", models.IPKey("analysis", "2001:db8::1"))
}
