package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "namqr:device:"

// Cache stores serialized answers with a TTL. Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisCache implements Cache backed by Redis.
type RedisCache struct {
	client redis.UniversalClient
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache constructs a Redis-backed answer cache.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load device answer: %w", err)
	}
	return b, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("persist device answer: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete device answer: %w", err)
	}
	return nil
}

// CachedGate is a read-through cache in front of another Gate. Only blocking answers
// (suspended, killed) are cached; active and unknown always reach the inner gate, so a
// revoke can never be masked by an answer read before it.
// Cache failures are logged and the inner gate is asked directly.
type CachedGate struct {
	inner  Gate
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedGate wraps inner with cache. Blocking answers are kept for ttl.
func NewCachedGate(inner Gate, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedGate{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (g *CachedGate) Query(ctx context.Context, deviceID string) (Answer, error) {
	key := cacheKeyPrefix + deviceID
	if b, err := g.cache.Get(ctx, key); err != nil {
		g.logger.Warn("device trust cache read failed", zap.String("device_id", deviceID), zap.Error(err))
	} else if b != nil {
		var ans Answer
		if err := json.Unmarshal(b, &ans); err == nil && ans.Blocks() {
			return ans, nil
		}
		g.logger.Warn("device trust cache entry unusable", zap.String("device_id", deviceID))
	}

	ans, err := g.inner.Query(ctx, deviceID)
	if err != nil || !ans.Blocks() {
		return ans, err
	}
	// A stale blocking answer only fails closed; reinstate invalidates it.
	b, err := json.Marshal(ans)
	if err == nil {
		err = g.cache.Set(ctx, key, b, g.ttl)
	}
	if err != nil {
		g.logger.Warn("device trust cache write failed", zap.String("device_id", deviceID), zap.Error(err))
	}
	return ans, nil
}

// Invalidate drops the cached answer for deviceID so the next query reaches the inner gate.
func (g *CachedGate) Invalidate(ctx context.Context, deviceID string) error {
	return g.cache.Delete(ctx, cacheKeyPrefix+deviceID)
}
