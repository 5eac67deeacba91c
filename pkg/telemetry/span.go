package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// SpanContext 生成 span 自身的 OpenTelemetry span context，子 span 通过 ctx 找到父 span
func SpanContext(traceID trace.TraceID, spanID trace.SpanID) trace.SpanContext {
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
}

// StartSpan 在 ctx 中当前 span 之下开启一个子 span，没有父 span 时开启新的 trace
// 返回的 end 在操作结束时调用一次，err 非空时 span 状态为 error；ing 为 nil 时不做任何事
func StartSpan(ctx context.Context, ing Ingester, name string, attrs Attributes) (context.Context, func(err error)) {
	if ing == nil {
		return ctx, func(error) {}
	}

	span := Span{
		SpanID:     NewSpanID(),
		Name:       name,
		Kind:       SpanKindInternal,
		StartTime:  time.Now(),
		Attributes: attrs,
	}
	if parent := trace.SpanContextFromContext(ctx); parent.IsValid() {
		span.TraceID = parent.TraceID()
		span.ParentSpanID = parent.SpanID()
	} else {
		span.TraceID = NewTraceID()
	}

	ctx = trace.ContextWithSpanContext(ctx, SpanContext(span.TraceID, span.SpanID))
	return ctx, func(err error) {
		span.EndTime = time.Now()
		if err != nil {
			span.Status = StatusError
			span.StatusMessage = err.Error()
		}
		ing.Ingest(SpanEvent(span))
	}
}
