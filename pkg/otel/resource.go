package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"otelapi/pkg/telemetry"
)

// ServiceAttributes 资源描述对应的 OpenTelemetry 属性，空字段不输出
func ServiceAttributes(desc telemetry.ResourceDescriptor) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(desc.ServiceName),
		semconv.ServiceVersion(desc.ServiceVersion),
		semconv.DeploymentEnvironment(desc.Environment),
		semconv.TelemetrySDKLanguageGo,
	}
	if desc.Namespace != "" {
		attrs = append(attrs, semconv.ServiceNamespace(desc.Namespace))
	}
	if desc.InstanceID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(desc.InstanceID))
	}
	return attrs
}

// NewResource 进程级资源：服务属性加上主机和操作系统信息
func NewResource(ctx context.Context, desc telemetry.ResourceDescriptor) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(ServiceAttributes(desc)...),
		resource.WithHost(),
		resource.WithOSType(),
		resource.WithOSDescription(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// StaticResource 只包含服务属性，不做任何探测
func StaticResource(desc telemetry.ResourceDescriptor) *resource.Resource {
	return resource.NewSchemaless(ServiceAttributes(desc)...)
}
