package transport

import (
	"context"
	"fmt"

	"otelapi/pkg/telemetry"
	sredis "otelapi/storage/redis"
)

// RedisTransport RPUSH 到一个定长列表，超出 maxLen 的旧 batch 被裁掉
type RedisTransport struct {
	client *sredis.Client
	key    string
	maxLen int64
}

// NewRedis key 会加上客户端的统一前缀，maxLen <= 0 表示不裁剪
func NewRedis(client *sredis.Client, key string, maxLen int64) (*RedisTransport, error) {
	if client == nil {
		return nil, fmt.Errorf("redis transport requires a redis client")
	}
	return &RedisTransport{client: client, key: client.Key(key), maxLen: maxLen}, nil
}

func (t *RedisTransport) Name() string { return "redis" }

// Key 实际写入的 redis key
func (t *RedisTransport) Key() string { return t.key }

func (t *RedisTransport) Send(ctx context.Context, b *telemetry.Batch, res telemetry.ResourceDescriptor) error {
	if b.Len() == 0 {
		return nil
	}

	data, err := EncodeBatch(b, res)
	if err != nil {
		return err
	}

	pipe := t.client.TxPipeline()
	pipe.RPush(ctx, t.key, data)
	if t.maxLen > 0 {
		pipe.LTrim(ctx, t.key, -t.maxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push batch %d to %s: %w", b.ID, t.key, err)
	}
	return nil
}

// Close 连接由 storage 层负责关闭
func (t *RedisTransport) Close(context.Context) error { return nil }
