package telemetry

import (
	"math"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ResourceDescriptor 描述产生 telemetry 数据的进程（服务名、版本、环境）
// 在 exporter 创建时确定，之后附加到每一个 batch 上，不会再被修改
type ResourceDescriptor struct {
	ServiceName    string `json:"service_name"`
	ServiceVersion string `json:"service_version"`
	Environment    string `json:"environment"`
	Namespace      string `json:"namespace,omitempty"`
	InstanceID     string `json:"instance_id,omitempty"`
}

// EventKind 事件类型
type EventKind uint8

const (
	KindSpan EventKind = iota + 1
	KindMetric
)

func (k EventKind) String() string {
	switch k {
	case KindSpan:
		return "span"
	case KindMetric:
		return "metric"
	default:
		return "unknown"
	}
}

// SpanStatus span 结束状态
type SpanStatus uint8

const (
	StatusOK SpanStatus = iota
	StatusError
)

func (s SpanStatus) String() string {
	if s == StatusError {
		return "error"
	}
	return "ok"
}

// SpanKind 与 OpenTelemetry 的 span kind 对应，只保留服务端会用到的几种
type SpanKind uint8

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

func (k SpanKind) String() string {
	switch k {
	case SpanKindServer:
		return "server"
	case SpanKindClient:
		return "client"
	default:
		return "internal"
	}
}

// MetricKind 指标点类型
type MetricKind uint8

const (
	MetricCounter MetricKind = iota
	MetricHistogram
)

func (k MetricKind) String() string {
	if k == MetricHistogram {
		return "histogram"
	}
	return "counter"
}

// Attributes 只允许标量值：string、bool、int、int64、float64
type Attributes map[string]any

// Span 描述一次请求或操作的生命周期
// ParentSpanID 只是按 id 的弱引用，不持有父 span
type Span struct {
	TraceID       trace.TraceID
	SpanID        trace.SpanID
	ParentSpanID  trace.SpanID
	Name          string
	Kind          SpanKind
	StartTime     time.Time
	EndTime       time.Time
	Status        SpanStatus
	StatusMessage string
	Attributes    Attributes
}

// HasParent 是否携带父 span 引用
func (s *Span) HasParent() bool {
	return s.ParentSpanID.IsValid()
}

// Duration span 耗时
func (s *Span) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// MetricPoint 单个指标采样
type MetricPoint struct {
	Name       string
	Value      float64
	Kind       MetricKind
	Unit       string
	Timestamp  time.Time
	Attributes Attributes
}

// Event 是 Span 与 MetricPoint 的 tagged union
type Event struct {
	Kind   EventKind
	Span   *Span
	Metric *MetricPoint
}

// SpanEvent 包装一个 span 事件
func SpanEvent(s Span) Event {
	return Event{Kind: KindSpan, Span: &s}
}

// MetricEvent 包装一个指标事件
func MetricEvent(m MetricPoint) Event {
	return Event{Kind: KindMetric, Metric: &m}
}

// Valid 事件的 payload 必须与 Kind 一致，数值（含属性）必须是有限值
func (e Event) Valid() bool {
	switch e.Kind {
	case KindSpan:
		return e.Span != nil && e.Metric == nil && e.Span.Attributes.finite()
	case KindMetric:
		return e.Metric != nil && e.Span == nil &&
			isFinite(e.Metric.Value) && e.Metric.Attributes.finite()
	default:
		return false
	}
}

func (a Attributes) finite() bool {
	for _, v := range a {
		switch f := v.(type) {
		case float64:
			if !isFinite(f) {
				return false
			}
		case float32:
			if !isFinite(float64(f)) {
				return false
			}
		}
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Name 返回 span 名或指标名
func (e Event) Name() string {
	switch {
	case e.Span != nil:
		return e.Span.Name
	case e.Metric != nil:
		return e.Metric.Name
	default:
		return ""
	}
}

// FlushReason 触发 flush 的原因
type FlushReason uint8

const (
	FlushReasonSize FlushReason = iota + 1
	FlushReasonTimer
	FlushReasonManual
	FlushReasonShutdown
)

func (r FlushReason) String() string {
	switch r {
	case FlushReasonSize:
		return "size"
	case FlushReasonTimer:
		return "timer"
	case FlushReasonManual:
		return "manual"
	case FlushReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Batch 两次 flush 之间采集到的事件，按 ingest 顺序排列
// 交给 transport 之后归 transport 所有，exporter 不会再访问
type Batch struct {
	ID        int64
	Seq       uint64
	Reason    FlushReason
	OpenedAt  time.Time
	FlushedAt time.Time
	Events    []Event
}

// Len 事件数量
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Events)
}

// Spans 返回 batch 中的 span，保持原有顺序
func (b *Batch) Spans() []*Span {
	spans := make([]*Span, 0, len(b.Events))
	for _, ev := range b.Events {
		if ev.Kind == KindSpan {
			spans = append(spans, ev.Span)
		}
	}
	return spans
}

// Metrics 返回 batch 中的指标点，保持原有顺序
func (b *Batch) Metrics() []*MetricPoint {
	points := make([]*MetricPoint, 0, len(b.Events))
	for _, ev := range b.Events {
		if ev.Kind == KindMetric {
			points = append(points, ev.Metric)
		}
	}
	return points
}
