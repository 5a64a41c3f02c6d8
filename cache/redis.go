package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares cached responses between processes. Redis expires each
// entry after its TTL, so a read never returns a value older than the TTL it
// was written with.
type RedisCache struct {
	client *redis.Client
	prefix string
	policy Policy
}

// NewRedisCache wraps client. Keys are stored under prefix.
func NewRedisCache(client *redis.Client, prefix string, policy Policy) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, policy: policy}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, value, c.policy.EffectiveTTL(ttl)).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, c.prefix+key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// DeletePrefix scans for matching keys and removes them in batches.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, c.prefix+prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
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

var _ Cache = (*RedisCache)(nil)
