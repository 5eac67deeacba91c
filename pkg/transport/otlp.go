package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	otelx "otelapi/pkg/otel"
	"otelapi/pkg/telemetry"
)

// DefaultHistogramBounds 秒级耗时的 bucket 边界
var DefaultHistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

const scopeName = "otelapi/pkg/transport"

// OTLPOptions collector 连接配置
type OTLPOptions struct {
	Endpoint string
	Insecure bool
	Timeout  time.Duration
}

// OTLPTransport 把 batch 转换为 OpenTelemetry SDK 的数据结构，通过 OTLP gRPC 发送
// 计数器按 名称+属性 汇总为 delta sum，直方图样本汇总为显式 bucket 的 delta histogram
type OTLPTransport struct {
	spans   sdktrace.SpanExporter
	metrics sdkmetric.Exporter
	scope   instrumentation.Scope
	bounds  []float64

	mu        sync.Mutex
	resources map[telemetry.ResourceDescriptor]*resource.Resource
}

// NewOTLP 创建 gRPC exporter，连接是惰性建立的
func NewOTLP(ctx context.Context, opts OTLPOptions) (*OTLPTransport, error) {
	endpoint := otelx.Endpoint(opts.Endpoint)

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
	if opts.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	if opts.Timeout > 0 {
		traceOpts = append(traceOpts, otlptracegrpc.WithTimeout(opts.Timeout))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithTimeout(opts.Timeout))
	}

	spanExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spanExporter.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	return NewOTLPWithExporters(spanExporter, metricExporter), nil
}

// NewOTLPWithExporters 使用已有的 exporter，任意一个为 nil 时对应数据不发送
func NewOTLPWithExporters(spans sdktrace.SpanExporter, metrics sdkmetric.Exporter) *OTLPTransport {
	return &OTLPTransport{
		spans:     spans,
		metrics:   metrics,
		scope:     instrumentation.Scope{Name: scopeName},
		bounds:    DefaultHistogramBounds,
		resources: make(map[telemetry.ResourceDescriptor]*resource.Resource),
	}
}

func (t *OTLPTransport) Name() string { return "otlp" }

// Send 空 batch 不产生网络调用
func (t *OTLPTransport) Send(ctx context.Context, b *telemetry.Batch, desc telemetry.ResourceDescriptor) error {
	if b.Len() == 0 {
		return nil
	}

	res := t.resource(desc)

	var err error
	if spans := b.Spans(); len(spans) > 0 && t.spans != nil {
		if e := t.spans.ExportSpans(ctx, SpanSnapshots(spans, res, t.scope)); e != nil {
			err = multierr.Append(err, fmt.Errorf("export %d spans: %w", len(spans), e))
		}
	}
	if points := b.Metrics(); len(points) > 0 && t.metrics != nil {
		rm := ResourceMetrics(b, res, t.scope, t.bounds)
		if e := t.metrics.Export(ctx, rm); e != nil {
			err = multierr.Append(err, fmt.Errorf("export %d metric points: %w", len(points), e))
		}
	}
	return err
}

func (t *OTLPTransport) Close(ctx context.Context) error {
	var err error
	if t.spans != nil {
		err = multierr.Append(err, t.spans.Shutdown(ctx))
	}
	if t.metrics != nil {
		err = multierr.Append(err, t.metrics.Shutdown(ctx))
	}
	return err
}

func (t *OTLPTransport) resource(desc telemetry.ResourceDescriptor) *resource.Resource {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, ok := t.resources[desc]
	if !ok {
		res = otelx.StaticResource(desc)
		t.resources[desc] = res
	}
	return res
}

// SpanSnapshots 转换为 SDK 的只读 span
func SpanSnapshots(spans []*telemetry.Span, res *resource.Resource, scope instrumentation.Scope) []sdktrace.ReadOnlySpan {
	out := make([]sdktrace.ReadOnlySpan, 0, len(spans))
	for _, s := range spans {
		stub := tracetest.SpanStub{
			Name: s.Name,
			SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    s.TraceID,
				SpanID:     s.SpanID,
				TraceFlags: trace.FlagsSampled,
			}),
			SpanKind:             spanKind(s.Kind),
			StartTime:            s.StartTime,
			EndTime:              s.EndTime,
			Attributes:           otelx.Attributes(s.Attributes),
			Resource:             res,
			InstrumentationScope: scope,
		}
		if s.HasParent() {
			stub.Parent = trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    s.TraceID,
				SpanID:     s.ParentSpanID,
				TraceFlags: trace.FlagsSampled,
				Remote:     true,
			})
		}
		if s.Status == telemetry.StatusError {
			stub.Status = sdktrace.Status{Code: codes.Error, Description: s.StatusMessage}
		} else {
			stub.Status = sdktrace.Status{Code: codes.Ok}
		}
		out = append(out, stub.Snapshot())
	}
	return out
}

func spanKind(k telemetry.SpanKind) trace.SpanKind {
	switch k {
	case telemetry.SpanKindServer:
		return trace.SpanKindServer
	case telemetry.SpanKindClient:
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}

type seriesKey struct {
	name  string
	kind  telemetry.MetricKind
	attrs attribute.Distinct
}

type series struct {
	unit   string
	attrs  attribute.Set
	sum    float64
	count  uint64
	min    float64
	max    float64
	counts []uint64
}

// ResourceMetrics 按 名称+类型+属性 汇总 batch 内的指标点，时间窗口为 [OpenedAt, FlushedAt]
// 输出顺序与每个指标第一次出现的顺序一致
func ResourceMetrics(b *telemetry.Batch, res *resource.Resource, scope instrumentation.Scope, bounds []float64) *metricdata.ResourceMetrics {
	type metricKey struct {
		name string
		kind telemetry.MetricKind
	}

	var order []metricKey
	perMetric := make(map[metricKey][]seriesKey)
	all := make(map[seriesKey]*series)

	for _, p := range b.Metrics() {
		set := attribute.NewSet(otelx.Attributes(p.Attributes)...)
		mk := metricKey{name: p.Name, kind: p.Kind}
		sk := seriesKey{name: p.Name, kind: p.Kind, attrs: set.Equivalent()}

		s, ok := all[sk]
		if !ok {
			s = &series{unit: p.Unit, attrs: set, min: p.Value, max: p.Value}
			if p.Kind == telemetry.MetricHistogram {
				s.counts = make([]uint64, len(bounds)+1)
			}
			all[sk] = s
			if _, seen := perMetric[mk]; !seen {
				order = append(order, mk)
			}
			perMetric[mk] = append(perMetric[mk], sk)
		}

		s.sum += p.Value
		s.count++
		if p.Value < s.min {
			s.min = p.Value
		}
		if p.Value > s.max {
			s.max = p.Value
		}
		if s.counts != nil {
			s.counts[sort.SearchFloat64s(bounds, p.Value)]++
		}
	}

	metrics := make([]metricdata.Metrics, 0, len(order))
	for _, mk := range order {
		keys := perMetric[mk]
		m := metricdata.Metrics{Name: mk.name, Unit: all[keys[0]].unit}

		switch mk.kind {
		case telemetry.MetricHistogram:
			h := metricdata.Histogram[float64]{Temporality: metricdata.DeltaTemporality}
			for _, k := range keys {
				s := all[k]
				h.DataPoints = append(h.DataPoints, metricdata.HistogramDataPoint[float64]{
					Attributes:   s.attrs,
					StartTime:    b.OpenedAt,
					Time:         b.FlushedAt,
					Count:        s.count,
					Bounds:       bounds,
					BucketCounts: s.counts,
					Min:          metricdata.NewExtrema(s.min),
					Max:          metricdata.NewExtrema(s.max),
					Sum:          s.sum,
				})
			}
			m.Data = h
		default:
			sum := metricdata.Sum[float64]{Temporality: metricdata.DeltaTemporality, IsMonotonic: true}
			for _, k := range keys {
				s := all[k]
				sum.DataPoints = append(sum.DataPoints, metricdata.DataPoint[float64]{
					Attributes: s.attrs,
					StartTime:  b.OpenedAt,
					Time:       b.FlushedAt,
					Value:      s.sum,
				})
			}
			m.Data = sum
		}
		metrics = append(metrics, m)
	}

	return &metricdata.ResourceMetrics{
		Resource: res,
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Scope:   scope,
			Metrics: metrics,
		}},
	}
}
