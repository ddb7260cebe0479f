package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/himanshugy2j/Banking-Transaction-Microservices/internal/domain"
)

func TestRedisReplayCache_NilIsAlwaysMiss(t *testing.T) {
	var cache *RedisReplayCache
	ctx := context.Background()

	result, ok := cache.Get(ctx, "any-key")
	assert.False(t, ok)
	assert.Nil(t, result)

	// Put on a nil cache must be a no-op, not a panic.
	cache.Put(ctx, "any-key", &Result{Transaction: &domain.Transaction{}})
}
