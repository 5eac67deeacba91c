package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"otelapi/pkg/errors"
	"otelapi/pkg/logger"
	"otelapi/pkg/response"
	"otelapi/storage/redis"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// 时间窗口
	Window time.Duration
	// 时间窗口内最大请求数
	MaxRequests int
	// 限流键前缀
	KeyPrefix string
	// 超过限制后禁止访问的时长，0 表示不额外封禁
	BlockDuration time.Duration
}

// NewRateLimitConfig 每秒 rps 次，按客户端 IP 计数
func NewRateLimitConfig(rps int) RateLimitConfig {
	return RateLimitConfig{
		Window:        time.Second,
		MaxRequests:   rps,
		KeyPrefix:     "ratelimit",
		BlockDuration: 10 * time.Second,
	}
}

// RateLimiter 基于 Redis zset 的滑动窗口限流器
type RateLimiter struct {
	client *redis.Client
	config RateLimitConfig
}

func NewRateLimiter(client *redis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

func (rl *RateLimiter) key(c *app.RequestContext) string {
	return rl.client.Key(rl.config.KeyPrefix, "ip", c.ClientIP())
}

func (rl *RateLimiter) blockKey(c *app.RequestContext) string {
	return rl.client.Key(rl.config.KeyPrefix, "block", "ip", c.ClientIP())
}

// Allow 记录本次请求并返回窗口内的请求数
func (rl *RateLimiter) Allow(ctx context.Context, c *app.RequestContext) (bool, int, error) {
	key := rl.key(c)
	now := time.Now()
	windowStart := now.Add(-rl.config.Window)

	pipe := rl.client.Pipeline()

	// 先移除窗口之外的记录
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	// 同一纳秒内的并发请求需要不同的 member
	pipe.ZAdd(ctx, key, redislib.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	zcardCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	count := int(zcardCmd.Val())
	return count <= rl.config.MaxRequests, count, nil
}

func (rl *RateLimiter) Block(ctx context.Context, c *app.RequestContext) error {
	if rl.config.BlockDuration <= 0 {
		return nil
	}
	return rl.client.Set(ctx, rl.blockKey(c), "1", rl.config.BlockDuration).Err()
}

func (rl *RateLimiter) IsBlocked(ctx context.Context, c *app.RequestContext) (bool, error) {
	n, err := rl.client.Exists(ctx, rl.blockKey(c)).Result()
	return n > 0, err
}

// RateLimitMiddleware Redis 不可用时放行，只记录日志
func RateLimitMiddleware(client *redis.Client, config RateLimitConfig) app.HandlerFunc {
	limiter := NewRateLimiter(client, config)

	return func(ctx context.Context, c *app.RequestContext) {
		blocked, err := limiter.IsBlocked(ctx, c)
		if err != nil {
			logger.Logger.Warn("Failed to check block status", zap.Error(err))
			c.Next(ctx)
			return
		}
		if blocked {
			c.Abort()
			response.Error(ctx, c, errors.TooManyRequests)
			return
		}

		allowed, count, err := limiter.Allow(ctx, c)
		if err != nil {
			logger.Logger.Warn("Failed to check rate limit", zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := config.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

		if !allowed {
			if err := limiter.Block(ctx, c); err != nil {
				logger.Logger.Warn("Failed to block client", zap.Error(err))
			}
			c.Abort()
			response.Error(ctx, c, errors.TooManyRequests)
			return
		}

		c.Next(ctx)
	}
}
