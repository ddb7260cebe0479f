/**
 * @description
 * This file implements an optional Redis cache in front of the idempotency
 * table. Committed results are written to the cache post-commit so replays of
 * hot keys resolve without touching PostgreSQL. The database remains the
 * source of truth; every cache miss falls through to the idempotency table.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: The Redis client.
 */

package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyReplayCache caches committed operation results by idempotency
// key. Implementations must treat misses and errors identically: the caller
// falls back to the database either way.
type IdempotencyReplayCache interface {
	Get(ctx context.Context, key string) (*Result, bool)
	Put(ctx context.Context, key string, result *Result)
}

// RedisReplayCache is a Redis-backed IdempotencyReplayCache. A nil
// *RedisReplayCache is valid and behaves as an always-miss cache, so the
// engine does not need to branch on whether Redis is configured.
type RedisReplayCache struct {
	client *redis.Client
	ttl    time.Duration
}

const replayCachePrefix = "ledger:idem:"

// NewRedisReplayCache creates a replay cache with the given TTL.
func NewRedisReplayCache(client *redis.Client, ttl time.Duration) *RedisReplayCache {
	return &RedisReplayCache{client: client, ttl: ttl}
}

// Get returns the cached result for key, or (nil, false) on a miss or any
// Redis error.
func (c *RedisReplayCache) Get(ctx context.Context, key string) (*Result, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, replayCachePrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("level=warn component=replay_cache msg=\"redis get failed\" error=%q", err)
		}
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		log.Printf("level=warn component=replay_cache msg=\"cached result undecodable, dropping\" key=%s", key)
		return nil, false
	}
	result.Replayed = true
	return &result, true
}

// Put stores a committed result. Failures are logged and swallowed; the
// cache is an optimization, never a dependency.
func (c *RedisReplayCache) Put(ctx context.Context, key string, result *Result) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, replayCachePrefix+key, raw, c.ttl).Err(); err != nil {
		log.Printf("level=warn component=replay_cache msg=\"redis set failed\" error=%q", err)
	}
}
