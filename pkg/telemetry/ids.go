package telemetry

import (
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// NewTraceID 生成随机 trace id
func NewTraceID() trace.TraceID {
	var id trace.TraceID
	u := uuid.New()
	copy(id[:], u[:])
	return id
}

// NewSpanID 生成随机 span id
func NewSpanID() trace.SpanID {
	var id trace.SpanID
	u := uuid.New()
	copy(id[:], u[8:])
	if !id.IsValid() {
		id[0] = 1
	}
	return id
}
