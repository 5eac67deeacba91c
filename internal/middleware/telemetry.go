package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	otelx "otelapi/pkg/otel"
	"otelapi/pkg/telemetry"
)

const (
	MetricRequestsStarted = "http.server.requests.started"
	MetricRequestsTotal   = "http.server.requests.total"
	MetricDuration        = "http.server.duration"

	unmatchedRoute = "unmatched"
)

// toValidUTF8 统一清洗用户可控字符串，防止非法 UTF-8 导致序列化失败
func toValidUTF8(val string) string {
	return strings.ToValidUTF8(val, "")
}

// TelemetryConfig 遥测中间件配置
type TelemetryConfig struct {
	// 默认 W3C trace context
	Propagator propagation.TextMapPropagator
	// 不采集的路径
	SkipPaths []string
}

// TelemetryMiddleware 每个请求产生一个 server span 和三类 HTTP 指标，交给 ing 批量导出
func TelemetryMiddleware(ing telemetry.Ingester) app.HandlerFunc {
	return TelemetryMiddlewareWithConfig(ing, TelemetryConfig{})
}

func TelemetryMiddlewareWithConfig(ing telemetry.Ingester, cfg TelemetryConfig) app.HandlerFunc {
	prop := cfg.Propagator
	if prop == nil {
		prop = propagation.TraceContext{}
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(ctx context.Context, c *app.RequestContext) {
		if ing == nil {
			c.Next(ctx)
			return
		}
		if _, ok := skip[string(c.Path())]; ok {
			c.Next(ctx)
			return
		}

		start := time.Now()
		method := toValidUTF8(string(c.Method()))
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		ing.Ingest(telemetry.MetricEvent(telemetry.MetricPoint{
			Name:      MetricRequestsStarted,
			Value:     1,
			Kind:      telemetry.MetricCounter,
			Unit:      "{request}",
			Timestamp: start,
			Attributes: telemetry.Attributes{
				string(semconv.HTTPMethodKey): method,
				string(semconv.HTTPRouteKey):  route,
			},
		}))

		// 上游带了 traceparent 时挂到同一条 trace 上
		ctx = prop.Extract(ctx, &otelx.RequestHeaderCarrier{Header: &c.Request.Header})
		span := telemetry.Span{
			SpanID:    telemetry.NewSpanID(),
			Name:      method + " " + route,
			Kind:      telemetry.SpanKindServer,
			StartTime: start,
		}
		if parent := trace.SpanContextFromContext(ctx); parent.IsValid() {
			span.TraceID = parent.TraceID()
			span.ParentSpanID = parent.SpanID()
		} else {
			span.TraceID = telemetry.NewTraceID()
		}
		ctx = trace.ContextWithSpanContext(ctx, telemetry.SpanContext(span.TraceID, span.SpanID))
		prop.Inject(ctx, &otelx.ResponseHeaderCarrier{Header: &c.Response.Header})

		c.Next(ctx)

		end := time.Now()
		statusCode := c.Response.StatusCode()

		span.EndTime = end
		span.Status, span.StatusMessage = spanStatus(c, statusCode)
		span.Attributes = telemetry.Attributes{
			string(semconv.HTTPMethodKey):     method,
			string(semconv.HTTPRouteKey):      route,
			string(semconv.HTTPStatusCodeKey): statusCode,
			"http.target":                     toValidUTF8(string(c.Path())),
			"http.user_agent":                 toValidUTF8(string(c.UserAgent())),
			"http.client_ip":                  c.ClientIP(),
		}
		if requestID := GetRequestID(c); requestID != "" {
			span.Attributes["http.request_id"] = requestID
		}
		ing.Ingest(telemetry.SpanEvent(span))

		labels := telemetry.Attributes{
			string(semconv.HTTPMethodKey):     method,
			string(semconv.HTTPRouteKey):      route,
			string(semconv.HTTPStatusCodeKey): statusCode,
		}
		ing.Ingest(telemetry.MetricEvent(telemetry.MetricPoint{
			Name:       MetricRequestsTotal,
			Value:      1,
			Kind:       telemetry.MetricCounter,
			Unit:       "{request}",
			Timestamp:  end,
			Attributes: labels,
		}))
		ing.Ingest(telemetry.MetricEvent(telemetry.MetricPoint{
			Name:       MetricDuration,
			Value:      end.Sub(start).Seconds(),
			Kind:       telemetry.MetricHistogram,
			Unit:       "s",
			Timestamp:  end,
			Attributes: labels,
		}))
	}
}

// spanStatus 5xx 一律为 error，4xx 只有 handler 记录了错误时才算
func spanStatus(c *app.RequestContext, statusCode int) (telemetry.SpanStatus, string) {
	lastErr := c.Errors.Last()

	switch {
	case statusCode >= http.StatusInternalServerError:
		if lastErr != nil {
			return telemetry.StatusError, lastErr.Error()
		}
		return telemetry.StatusError, http.StatusText(statusCode)
	case statusCode >= http.StatusBadRequest && lastErr != nil:
		return telemetry.StatusError, lastErr.Error()
	default:
		return telemetry.StatusOK, ""
	}
}
