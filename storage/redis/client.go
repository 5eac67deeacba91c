package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "otelapi"

// Options Redis 连接配置，对应 REDIS_* 环境变量
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Client go-redis 客户端加上统一的 key 前缀
type Client struct {
	*redis.Client
	prefix string
}

// New 建立连接并 Ping 一次，失败时关闭客户端
func New(ctx context.Context, opts Options) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return Wrap(rdb, opts.Prefix), nil
}

// Wrap 包装已有的客户端（测试里配合 miniredis 使用）
func Wrap(rdb *redis.Client, prefix string) *Client {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Client{Client: rdb, prefix: prefix}
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// Key 拼接带前缀的 key，空片段会被跳过
func (c *Client) Key(parts ...string) string {
	var sb strings.Builder
	sb.WriteString(c.prefix)
	for _, part := range parts {
		if part != "" {
			sb.WriteString(":")
			sb.WriteString(part)
		}
	}

	return sb.String()
}
