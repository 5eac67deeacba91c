package storage

import (
	"context"

	"go.uber.org/zap"

	"otelapi/config"
	"otelapi/pkg/logger"
	"otelapi/storage/mq"
	"otelapi/storage/redis"
)

// Storage 进程用到的外部连接，只打开配置里实际需要的部分
type Storage struct {
	Redis *redis.Client
	MQ    *mq.Client
}

// Init 统一初始化 storage 层，失败时关闭已经打开的连接
func Init(ctx context.Context, cfg *config.Config) (*Storage, error) {
	s := &Storage{}

	if cfg.NeedsRedis() {
		client, err := redis.New(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		s.Redis = client
		logger.Logger.Info("Redis connected", zap.String("addr", cfg.RedisAddr))
	}

	if cfg.HasTransport("amqp") {
		client, err := mq.Dial(cfg.GetRabbitMQURL(), logger.Logger)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.MQ = client
		logger.Logger.Info("RabbitMQ connected", zap.String("addr", cfg.RabbitMQAddr))
	}

	return s, nil
}
