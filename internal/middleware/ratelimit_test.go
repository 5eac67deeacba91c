package middleware

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"otelapi/storage/redis"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, redis.Wrap(rdb, "test")
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	observeLogs(t)
	_, client := setupTestRedis(t)

	cfg := RateLimitConfig{Window: time.Minute, MaxRequests: 2, KeyPrefix: "rl", BlockDuration: time.Minute}
	r := newEngine(RateLimitMiddleware(client, cfg))
	r.GET("/", ok)

	first := get(r, "/").Result()
	assert.Equal(t, 200, first.StatusCode())
	assert.Equal(t, "2", string(first.Header.Peek("X-RateLimit-Limit")))
	assert.Equal(t, "1", string(first.Header.Peek("X-RateLimit-Remaining")))

	assert.Equal(t, 200, get(r, "/").Result().StatusCode())
	assert.Equal(t, 429, get(r, "/").Result().StatusCode())
	// 已被封禁
	assert.Equal(t, 429, get(r, "/").Result().StatusCode())
}

func TestRateLimitFailsOpenWhenRedisDown(t *testing.T) {
	logs := observeLogs(t)
	mr, client := setupTestRedis(t)
	mr.Close()

	r := newEngine(RateLimitMiddleware(client, NewRateLimitConfig(1)))
	r.GET("/", ok)

	assert.Equal(t, 200, get(r, "/").Result().StatusCode())
	assert.Equal(t, 1, logs.FilterMessage("Failed to check block status").Len())
}
