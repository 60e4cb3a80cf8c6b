package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"autoshield/internal/registry/metrics"
	"autoshield/internal/registry/models"
	"autoshield/pkg/domain"
	"autoshield/pkg/platform/circuit"
)

// cacheKeyPrefix namespaces current-record entries.
const cacheKeyPrefix = "autoshield:verification:"

// cachedRecord is the Redis value for one account. Seq orders entries so an
// older record never replaces a newer one.
type cachedRecord struct {
	Status      uint8  `json:"s"`
	Ref         string `json:"r"`
	LastChecked int64  `json:"t"`
	Score       uint64 `json:"c"`
	Seq         uint64 `json:"q"`
}

// putIfNewer stores ARGV[1] at KEYS[1] unless the entry already there carries
// a sequence at or above ARGV[2]. ARGV[3] is the TTL in milliseconds, 0 for
// none. Returns 1 when the value was written.
var putIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
  local ok, decoded = pcall(cjson.decode, current)
  if ok and type(decoded) == 'table' then
    local seq = tonumber(decoded['q'])
    if seq ~= nil and seq >= tonumber(ARGV[2]) then
      return 0
    end
  end
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// RedisCache decorates a Store with a Redis cache of current records.
//
// Commits write through after the inner store commits and read misses fill
// the entry. Both go through putIfNewer, so with several instances sharing one
// database a delayed write-through or fill never replaces a record with a
// higher sequence. A failed write-through deletes the entry and marks the
// cache dirty; fills are skipped while dirty and the next read purges every
// entry before trusting Redis again. While the breaker is open, reads also
// bypass Redis.
type RedisCache struct {
	inner   Store
	client  *redis.Client
	ttl     time.Duration
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	dirty   atomic.Bool
}

// RedisCacheOption configures a RedisCache.
type RedisCacheOption func(*RedisCache)

func WithCacheMetrics(m *metrics.Metrics) RedisCacheOption {
	return func(c *RedisCache) {
		c.metrics = m
	}
}

func WithCacheLogger(logger *slog.Logger) RedisCacheOption {
	return func(c *RedisCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithCacheBreaker(b *circuit.Breaker) RedisCacheOption {
	return func(c *RedisCache) {
		if b != nil {
			c.breaker = b
		}
	}
}

// NewRedisCache wraps inner. ttl bounds how long an entry lives without a write.
func NewRedisCache(inner Store, client *redis.Client, ttl time.Duration, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		breaker: circuit.New("redis-cache"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func cacheKey(addr domain.Address) string {
	return cacheKeyPrefix + addr.Hex()
}

func (c *RedisCache) Apply(ctx context.Context, w models.Write) (models.Commit, error) {
	commit, err := c.inner.Apply(ctx, w)
	if err != nil {
		return models.Commit{}, err
	}

	if _, err := c.put(ctx, commit.Record); err != nil {
		c.recordFailure(ctx, "write_through", err)
		// A read that loaded the previous record may still fill it, so the
		// cache stays untrusted until the next purge.
		c.dirty.Store(true)
		delErr := c.client.Del(ctx, cacheKey(w.Address)).Err()
		c.logger.WarnContext(ctx, "verification cache marked dirty",
			"address", w.Address.String(),
			"error", err,
			"delete_error", delErr,
		)
		return commit, nil
	}
	c.recordSuccess(ctx)
	return commit, nil
}

// put writes record unless Redis already holds the same or a later sequence.
func (c *RedisCache) put(ctx context.Context, record models.Record) (bool, error) {
	payload, err := encodeRecord(record)
	if err != nil {
		return false, err
	}
	written, err := putIfNewer.Run(ctx, c.client,
		[]string{cacheKey(record.Address)},
		payload, record.Seq, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return written == 1, nil
}

func (c *RedisCache) GetRecord(ctx context.Context, addr domain.Address) (models.Record, error) {
	if !c.usable(ctx) {
		return c.inner.GetRecord(ctx, addr)
	}

	raw, err := c.client.Get(ctx, cacheKey(addr)).Bytes()
	switch {
	case err == nil:
		record, decodeErr := decodeRecord(addr, raw)
		if decodeErr == nil {
			c.recordSuccess(ctx)
			c.metrics.RecordCacheHit()
			return record, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cache entry",
			"address", addr.String(),
			"error", decodeErr,
		)
		_ = c.client.Del(ctx, cacheKey(addr)).Err()
	case errors.Is(err, redis.Nil):
		c.recordSuccess(ctx)
	default:
		c.recordFailure(ctx, "get", err)
		return c.inner.GetRecord(ctx, addr)
	}

	c.metrics.RecordCacheMiss()
	record, err := c.inner.GetRecord(ctx, addr)
	if err != nil {
		return models.Record{}, err
	}
	c.fill(ctx, record)
	return record, nil
}

func (c *RedisCache) GetRecords(ctx context.Context, addrs []domain.Address) (map[domain.Address]models.Record, error) {
	if len(addrs) == 0 || !c.usable(ctx) {
		return c.inner.GetRecords(ctx, addrs)
	}

	keys := make([]string, len(addrs))
	for i, addr := range addrs {
		keys[i] = cacheKey(addr)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.recordFailure(ctx, "mget", err)
		return c.inner.GetRecords(ctx, addrs)
	}
	c.recordSuccess(ctx)

	out := make(map[domain.Address]models.Record, len(addrs))
	var missing []domain.Address
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, addrs[i])
			continue
		}
		record, err := decodeRecord(addrs[i], []byte(s))
		if err != nil {
			missing = append(missing, addrs[i])
			continue
		}
		c.metrics.RecordCacheHit()
		out[addrs[i]] = record
	}
	if len(missing) == 0 {
		return out, nil
	}

	for range missing {
		c.metrics.RecordCacheMiss()
	}
	found, err := c.inner.GetRecords(ctx, missing)
	if err != nil {
		return nil, err
	}
	for addr, record := range found {
		out[addr] = record
		c.fill(ctx, record)
	}
	return out, nil
}

func (c *RedisCache) History(ctx context.Context, addr domain.Address) ([]models.HistoryEntry, error) {
	return c.inner.History(ctx, addr)
}

func (c *RedisCache) HistoryPage(ctx context.Context, addr domain.Address, after uint64, limit int) ([]models.HistoryEntry, bool, error) {
	return c.inner.HistoryPage(ctx, addr, after, limit)
}

func (c *RedisCache) Count(ctx context.Context) (uint64, error) {
	return c.inner.Count(ctx)
}

func (c *RedisCache) Stats(ctx context.Context) (models.Stats, error) {
	return c.inner.Stats(ctx)
}

// fill populates an entry after a miss. An entry written meanwhile by a
// newer commit is left alone.
func (c *RedisCache) fill(ctx context.Context, record models.Record) {
	if c.dirty.Load() {
		return
	}
	if _, err := c.put(ctx, record); err != nil {
		c.recordFailure(ctx, "fill", err)
	}
}

// usable reports whether reads may be served from Redis, purging the cache
// first when an earlier write-through failed.
func (c *RedisCache) usable(ctx context.Context) bool {
	if c.breaker.IsOpen() {
		// Probe so the breaker can close once Redis recovers.
		if err := c.client.Ping(ctx).Err(); err != nil {
			c.recordFailure(ctx, "probe", err)
		} else {
			c.recordSuccess(ctx)
		}
		return false
	}
	if !c.dirty.Load() {
		return true
	}
	if err := c.purge(ctx); err != nil {
		c.recordFailure(ctx, "purge", err)
		return false
	}
	c.dirty.Store(false)
	c.logger.InfoContext(ctx, "verification cache purged after write-through failure")
	return true
}

// purge deletes every cached record.
func (c *RedisCache) purge(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (c *RedisCache) recordFailure(ctx context.Context, op string, err error) {
	c.metrics.RecordCacheError(op)
	if _, change := c.breaker.RecordFailure(); change.Opened {
		// Entries written while open may be stale once it closes.
		c.dirty.Store(true)
		c.logger.WarnContext(ctx, "verification cache circuit opened",
			"breaker", c.breaker.Name(),
			"operation", op,
			"error", err,
		)
	}
}

func (c *RedisCache) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "verification cache circuit closed", "breaker", c.breaker.Name())
	}
}

func encodeRecord(r models.Record) ([]byte, error) {
	return json.Marshal(cachedRecord{
		Status:      uint8(r.Status),
		Ref:         r.AttestationRef,
		LastChecked: r.LastChecked.UnixNano(),
		Score:       r.ConfidenceScore,
		Seq:         r.Seq,
	})
}

func decodeRecord(addr domain.Address, raw []byte) (models.Record, error) {
	var cr cachedRecord
	if err := json.Unmarshal(raw, &cr); err != nil {
		return models.Record{}, fmt.Errorf("decode cached record: %w", err)
	}
	status, err := models.ParseStatusCode(int(cr.Status))
	if err != nil {
		return models.Record{}, fmt.Errorf("decode cached record: %w", err)
	}
	return models.Record{
		Address:         addr,
		Status:          status,
		AttestationRef:  cr.Ref,
		LastChecked:     time.Unix(0, cr.LastChecked).UTC(),
		ConfidenceScore: cr.Score,
		Seq:             cr.Seq,
	}, nil
}
