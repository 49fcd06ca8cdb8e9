package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stockpipe/internal/config"
)

// Stats tracks cache performance counters.
type Stats struct {
	mu     sync.Mutex
	hits   int64
	misses int64
	sets   int64
}

// ResponseCache caches raw upstream payloads in Redis so repeated pipeline
// runs within the TTL skip the rate-limited request entirely. A nil cache is
// valid and behaves as always-miss, so callers need no enabled checks.
type ResponseCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	logger *logrus.Logger
	stats  Stats
}

// Connect opens a Redis connection and verifies it with a ping.
func Connect(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return rdb, nil
}

// NewResponseCache creates a cache over an existing Redis client.
func NewResponseCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *ResponseCache {
	if logger == nil {
		logger = logrus.New()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &ResponseCache{
		redis:  client,
		ttl:    ttl,
		prefix: "response_cache:",
		logger: logger,
	}
}

// Key builds a cache key from request-identifying parts.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Get returns the cached payload for key, if present.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		c.stats.mu.Lock()
		c.stats.misses++
		c.stats.mu.Unlock()
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Redis error reading cached response")
		c.stats.mu.Lock()
		c.stats.misses++
		c.stats.mu.Unlock()
		return nil, false
	}

	c.stats.mu.Lock()
	c.stats.hits++
	c.stats.mu.Unlock()
	return data, true
}

// Set stores a payload under key with the cache TTL. Failures are logged,
// not returned: a broken cache must never fail a fetch.
func (c *ResponseCache) Set(ctx context.Context, key string, payload []byte) {
	if c == nil || c.redis == nil {
		return
	}

	if err := c.redis.Set(ctx, c.prefix+key, payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Redis error caching response")
		return
	}

	c.stats.mu.Lock()
	c.stats.sets++
	c.stats.mu.Unlock()
}

// Counters returns hit/miss/set totals.
func (c *ResponseCache) Counters() (hits, misses, sets int64) {
	if c == nil {
		return 0, 0, 0
	}
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return c.stats.hits, c.stats.misses, c.stats.sets
}
