package transport

import (
	"time"

	"go.opentelemetry.io/otel/sdk/instrumentation"

	"otelapi/pkg/telemetry"
)

var testResource = telemetry.ResourceDescriptor{
	ServiceName:    "signoz-example-go",
	ServiceVersion: "1.0.0",
	Environment:    "development",
}

func scopeForTest() instrumentation.Scope {
	return instrumentation.Scope{Name: scopeName}
}

// sampleBatch 一个请求 span、一个子 span 和一个计数器
func sampleBatch() *telemetry.Batch {
	start := time.Unix(1700000000, 0)
	traceID := telemetry.NewTraceID()
	rootID := telemetry.NewSpanID()

	return &telemetry.Batch{
		ID:        42,
		Seq:       7,
		Reason:    telemetry.FlushReasonSize,
		OpenedAt:  start,
		FlushedAt: start.Add(time.Second),
		Events: []telemetry.Event{
			telemetry.SpanEvent(telemetry.Span{
				TraceID:    traceID,
				SpanID:     rootID,
				Name:       "GET /api/users",
				Kind:       telemetry.SpanKindServer,
				StartTime:  start,
				EndTime:    start.Add(120 * time.Millisecond),
				Attributes: telemetry.Attributes{"http.method": "GET", "http.status_code": 200},
			}),
			telemetry.SpanEvent(telemetry.Span{
				TraceID:       traceID,
				SpanID:        telemetry.NewSpanID(),
				ParentSpanID:  rootID,
				Name:          "store.list_users",
				StartTime:     start.Add(time.Millisecond),
				EndTime:       start.Add(101 * time.Millisecond),
				Status:        telemetry.StatusError,
				StatusMessage: "store offline",
			}),
			telemetry.MetricEvent(telemetry.MetricPoint{
				Name:       "http.server.requests.total",
				Kind:       telemetry.MetricCounter,
				Value:      1,
				Timestamp:  start.Add(120 * time.Millisecond),
				Attributes: telemetry.Attributes{"http.method": "GET"},
			}),
		},
	}
}
