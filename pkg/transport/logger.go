package transport

import (
	"context"

	"go.uber.org/zap"

	"otelapi/pkg/telemetry"
)

// LogTransport 把 batch 写到日志，开发环境和调试用
// 概要输出在 info 级别，每个事件输出在 debug 级别
type LogTransport struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger.With(zap.String("transport", "log"))}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(ctx context.Context, b *telemetry.Batch, res telemetry.ResourceDescriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.logger.Info("Telemetry batch",
		zap.Int64("batch_id", b.ID),
		zap.Uint64("seq", b.Seq),
		zap.String("reason", b.Reason.String()),
		zap.String("service", res.ServiceName),
		zap.String("version", res.ServiceVersion),
		zap.String("environment", res.Environment),
		zap.Int("spans", len(b.Spans())),
		zap.Int("metrics", len(b.Metrics())),
		zap.Time("opened_at", b.OpenedAt),
		zap.Time("flushed_at", b.FlushedAt),
	)

	if !t.logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}

	for _, ev := range b.Events {
		switch ev.Kind {
		case telemetry.KindSpan:
			s := ev.Span
			t.logger.Debug("span",
				zap.String("name", s.Name),
				zap.String("trace_id", s.TraceID.String()),
				zap.String("span_id", s.SpanID.String()),
				zap.String("kind", s.Kind.String()),
				zap.String("status", s.Status.String()),
				zap.Duration("duration", s.Duration()),
				zap.Any("attributes", s.Attributes),
			)
		case telemetry.KindMetric:
			m := ev.Metric
			t.logger.Debug("metric",
				zap.String("name", m.Name),
				zap.String("kind", m.Kind.String()),
				zap.Float64("value", m.Value),
				zap.String("unit", m.Unit),
				zap.Any("attributes", m.Attributes),
			)
		}
	}
	return nil
}

func (t *LogTransport) Close(context.Context) error {
	_ = t.logger.Sync()
	return nil
}
