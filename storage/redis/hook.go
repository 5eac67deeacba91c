package redis

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"otelapi/pkg/telemetry"
)

const (
	MetricCommandsTotal   = "redis.commands.total"
	MetricCommandDuration = "redis.command.duration"
)

var _ redis.Hook = (*TracingHook)(nil)

// TracingHook 把请求内的 Redis 命令记录为子 span 和指标
// ctx 中没有活动 span 的命令（例如 exporter 自己发送 batch）不记录，避免遥测数据自我放大
type TracingHook struct {
	ing   telemetry.Ingester
	attrs telemetry.Attributes
}

func NewTracingHook(ing telemetry.Ingester, db int) *TracingHook {
	return &TracingHook{
		ing: ing,
		attrs: telemetry.Attributes{
			string(semconv.DBSystemKey):       semconv.DBSystemRedis.Value.AsString(),
			string(semconv.DBRedisDBIndexKey): db,
		},
	}
}

// Instrument 给客户端挂上 hook
func (c *Client) Instrument(ing telemetry.Ingester, db int) {
	if c == nil || c.Client == nil || ing == nil {
		return
	}
	c.AddHook(NewTracingHook(ing, db))
}

func (th *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (th *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if !trace.SpanContextFromContext(ctx).IsValid() {
			return next(ctx, cmd)
		}

		attrs := th.spanAttrs(len(cmd.Args()) + 1)
		attrs[string(semconv.DBOperationKey)] = cmd.Name()
		if keys := extractKeys(cmd.Args()); len(keys) > 0 {
			attrs["redis.keys"] = strings.Join(keys, ",")
		}

		start := time.Now()
		ctx, end := telemetry.StartSpan(ctx, th.ing, "redis."+cmd.Name(), attrs)
		err := next(ctx, cmd)
		end(commandError(err))

		th.record(cmd.Name(), status(err), time.Since(start))
		return err
	}
}

func (th *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if !trace.SpanContextFromContext(ctx).IsValid() {
			return next(ctx, cmds)
		}

		names := make([]string, 0, len(cmds))
		for _, cmd := range cmds {
			names = append(names, cmd.Name())
		}
		attrs := th.spanAttrs(4)
		attrs["redis.pipeline.count"] = len(cmds)
		attrs["redis.pipeline.commands"] = strings.Join(names, ";")

		start := time.Now()
		ctx, end := telemetry.StartSpan(ctx, th.ing, "redis.pipeline", attrs)
		err := next(ctx, cmds)
		end(commandError(err))

		th.record("pipeline", status(err), time.Since(start))
		return err
	}
}

func (th *TracingHook) spanAttrs(extra int) telemetry.Attributes {
	attrs := make(telemetry.Attributes, len(th.attrs)+extra)
	for k, v := range th.attrs {
		attrs[k] = v
	}
	return attrs
}

func (th *TracingHook) record(command, status string, d time.Duration) {
	now := time.Now()
	labels := telemetry.Attributes{
		"redis.command": command,
		"redis.status":  status,
	}
	th.ing.Ingest(telemetry.MetricEvent(telemetry.MetricPoint{
		Name:       MetricCommandsTotal,
		Value:      1,
		Kind:       telemetry.MetricCounter,
		Unit:       "{command}",
		Timestamp:  now,
		Attributes: labels,
	}))
	th.ing.Ingest(telemetry.MetricEvent(telemetry.MetricPoint{
		Name:       MetricCommandDuration,
		Value:      d.Seconds(),
		Kind:       telemetry.MetricHistogram,
		Unit:       "s",
		Timestamp:  now,
		Attributes: labels,
	}))
}

// commandError redis.Nil 只是未命中，不算失败
func commandError(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, redis.Nil):
		return "not_found"
	default:
		return "error"
	}
}

// extractKeys 只取前几个字符串参数，跳过命令名
func extractKeys(args []interface{}) []string {
	if len(args) < 2 {
		return nil
	}

	keys := make([]string, 0, 5)
	for i := 1; i < len(args) && len(keys) < 5; i++ {
		if key, ok := args[i].(string); ok {
			keys = append(keys, sanitizeKey(key))
		}
	}

	return keys
}

// sanitizeKey 隐藏敏感键名
func sanitizeKey(key string) string {
	if strings.Contains(key, "token") ||
		strings.Contains(key, "password") ||
		strings.Contains(key, "secret") ||
		strings.Contains(key, "session") {
		parts := strings.Split(key, ":")
		if len(parts) > 1 {
			return parts[0] + ":***"
		}
		return "***"
	}

	if len(key) > 100 {
		return key[:100] + "..."
	}

	return key
}
