package transport

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"otelapi/pkg/telemetry"
)

// ContentType JSON 编码的 batch
const ContentType = "application/json"

// WireBatch http/redis/amqp 共用的 JSON 格式
type WireBatch struct {
	BatchID   int64                        `json:"batch_id"`
	Seq       uint64                       `json:"seq"`
	Reason    string                       `json:"reason"`
	OpenedAt  time.Time                    `json:"opened_at"`
	FlushedAt time.Time                    `json:"flushed_at"`
	Resource  telemetry.ResourceDescriptor `json:"resource"`
	Events    []WireEvent                  `json:"events"`
}

// WireEvent type 为 span 时填充 span 字段，为 metric 时填充指标字段
type WireEvent struct {
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`

	TraceID       string     `json:"trace_id,omitempty"`
	SpanID        string     `json:"span_id,omitempty"`
	ParentSpanID  string     `json:"parent_span_id,omitempty"`
	SpanKind      string     `json:"span_kind,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	DurationMS    float64    `json:"duration_ms,omitempty"`
	Status        string     `json:"status,omitempty"`
	StatusMessage string     `json:"status_message,omitempty"`

	MetricKind string     `json:"metric_kind,omitempty"`
	Value      *float64   `json:"value,omitempty"`
	Unit       string     `json:"unit,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// NewWireBatch 转换为线上格式
// JSON 无法表示 NaN/Inf：非有限值的指标点整条跳过，属性里的非有限值单独去掉
func NewWireBatch(b *telemetry.Batch, res telemetry.ResourceDescriptor) *WireBatch {
	wb := &WireBatch{
		BatchID:   b.ID,
		Seq:       b.Seq,
		Reason:    b.Reason.String(),
		OpenedAt:  b.OpenedAt,
		FlushedAt: b.FlushedAt,
		Resource:  res,
		Events:    make([]WireEvent, 0, b.Len()),
	}

	for _, ev := range b.Events {
		switch ev.Kind {
		case telemetry.KindSpan:
			wb.Events = append(wb.Events, wireSpan(ev.Span))
		case telemetry.KindMetric:
			if !finite(ev.Metric.Value) {
				continue
			}
			wb.Events = append(wb.Events, wireMetric(ev.Metric))
		}
	}
	return wb
}

func wireSpan(s *telemetry.Span) WireEvent {
	start, end := s.StartTime, s.EndTime
	we := WireEvent{
		Type:          telemetry.KindSpan.String(),
		Name:          s.Name,
		Attributes:    wireAttributes(s.Attributes),
		TraceID:       s.TraceID.String(),
		SpanID:        s.SpanID.String(),
		SpanKind:      s.Kind.String(),
		StartTime:     &start,
		EndTime:       &end,
		DurationMS:    float64(s.Duration()) / float64(time.Millisecond),
		Status:        s.Status.String(),
		StatusMessage: s.StatusMessage,
	}
	if s.HasParent() {
		we.ParentSpanID = s.ParentSpanID.String()
	}
	return we
}

func wireMetric(m *telemetry.MetricPoint) WireEvent {
	value, ts := m.Value, m.Timestamp
	return WireEvent{
		Type:       telemetry.KindMetric.String(),
		Name:       m.Name,
		Attributes: wireAttributes(m.Attributes),
		MetricKind: m.Kind.String(),
		Value:      &value,
		Unit:       m.Unit,
		Timestamp:  &ts,
	}
}

func wireAttributes(attrs telemetry.Attributes) map[string]any {
	clean := true
	for _, v := range attrs {
		if f, ok := v.(float64); ok && !finite(f) {
			clean = false
			break
		}
		if f, ok := v.(float32); ok && !finite(float64(f)) {
			clean = false
			break
		}
	}
	if clean {
		return attrs
	}

	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch f := v.(type) {
		case float64:
			if !finite(f) {
				continue
			}
		case float32:
			if !finite(float64(f)) {
				continue
			}
		}
		out[k] = v
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// EncodeBatch 编码为 JSON
func EncodeBatch(b *telemetry.Batch, res telemetry.ResourceDescriptor) ([]byte, error) {
	data, err := json.Marshal(NewWireBatch(b, res))
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch %d: %w", b.ID, err)
	}
	return data, nil
}

// DecodeBatch 解码 JSON，属性中的数字统一为 float64
func DecodeBatch(data []byte) (*WireBatch, error) {
	var wb WireBatch
	if err := json.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	return &wb, nil
}

// Spans span 数量
func (wb *WireBatch) Spans() int {
	return wb.count(telemetry.KindSpan)
}

// Metrics 指标点数量
func (wb *WireBatch) Metrics() int {
	return wb.count(telemetry.KindMetric)
}

func (wb *WireBatch) count(kind telemetry.EventKind) int {
	n := 0
	for _, ev := range wb.Events {
		if ev.Type == kind.String() {
			n++
		}
	}
	return n
}
