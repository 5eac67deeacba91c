package transport

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"otelapi/pkg/telemetry"
	"otelapi/storage/mq"
	sredis "otelapi/storage/redis"
)

// Options 按名称构建 transport 所需的配置
type Options struct {
	Names []string

	OTLP         OTLPOptions
	HTTPEndpoint string
	Timeout      time.Duration

	RedisKey    string
	RedisMaxLen int64

	AMQPExchange   string
	AMQPRoutingKey string

	// BreakerFailures <= 0 时不包装熔断器
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Deps 外部连接，由 storage 层创建和关闭
type Deps struct {
	Logger *zap.Logger
	Redis  *sredis.Client
	MQ     *mq.Client
}

// Build 构建配置的 transport 列表，多于一个时用 Fanout 组合
func Build(ctx context.Context, opts Options, deps Deps) (telemetry.Transport, error) {
	if len(opts.Names) == 0 {
		return nil, fmt.Errorf("no telemetry transport configured")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	built := make([]telemetry.Transport, 0, len(opts.Names))
	for _, name := range opts.Names {
		t, err := build(ctx, name, opts, deps)
		if err != nil {
			closeAll(ctx, built, deps.Logger)
			return nil, fmt.Errorf("build %s transport: %w", name, err)
		}
		if opts.BreakerFailures > 0 && name != "log" {
			t = NewBreaker(t, opts.BreakerFailures, opts.BreakerCooldown, deps.Logger)
		}
		built = append(built, t)
	}

	if len(built) == 1 {
		return built[0], nil
	}
	return NewFanout(built...), nil
}

func build(ctx context.Context, name string, opts Options, deps Deps) (telemetry.Transport, error) {
	switch name {
	case "log":
		return NewLog(deps.Logger), nil
	case "otlp":
		return NewOTLP(ctx, opts.OTLP)
	case "http":
		return NewHTTP(opts.HTTPEndpoint, opts.Timeout)
	case "redis":
		if deps.Redis == nil {
			return nil, fmt.Errorf("redis client is not initialized")
		}
		return NewRedis(deps.Redis, opts.RedisKey, opts.RedisMaxLen)
	case "amqp":
		if deps.MQ == nil {
			return nil, fmt.Errorf("rabbitmq client is not initialized")
		}
		if err := deps.MQ.DeclareTopicExchange(opts.AMQPExchange); err != nil {
			return nil, err
		}
		return NewAMQP(deps.MQ, opts.AMQPExchange, opts.AMQPRoutingKey)
	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}

func closeAll(ctx context.Context, ts []telemetry.Transport, logger *zap.Logger) {
	var err error
	for _, t := range ts {
		err = multierr.Append(err, t.Close(ctx))
	}
	if err != nil {
		logger.Warn("Failed to close partially built transports", zap.Error(err))
	}
}
