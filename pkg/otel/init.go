package otel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// MeterOptions 进程自身指标的导出配置
type MeterOptions struct {
	Endpoint string
	Insecure bool
	Interval time.Duration
	Timeout  time.Duration
}

// Endpoint grpc exporter 只接受 host:port，去掉 http:// 或 https:// 前缀
func Endpoint(raw string) string {
	if strings.HasPrefix(raw, "http://") {
		return strings.TrimPrefix(raw, "http://")
	}
	return strings.TrimPrefix(raw, "https://")
}

// SetPropagator 设置全局 W3C trace context + baggage propagator
func SetPropagator() propagation.TextMapPropagator {
	p := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(p)
	return p
}

// InitMeterProvider 通过 OTLP gRPC 周期性导出进程自身指标，并设置为全局 MeterProvider
func InitMeterProvider(ctx context.Context, res *resource.Resource, opts MeterOptions) (*sdkmetric.MeterProvider, error) {
	exporterOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(Endpoint(opts.Endpoint)),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := NewMeterProvider(res, sdkmetric.NewPeriodicReader(
		metricExporter,
		sdkmetric.WithInterval(opts.Interval),
		sdkmetric.WithTimeout(opts.Timeout),
	))
	otel.SetMeterProvider(mp)

	return mp, nil
}

// NewMeterProvider 用指定 reader 创建 MeterProvider，测试里传 ManualReader
func NewMeterProvider(res *resource.Resource, reader sdkmetric.Reader) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
}
