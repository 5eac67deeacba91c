package otel

import (
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"otelapi/pkg/telemetry"
)

// Attributes 把事件属性转换为 OpenTelemetry 属性，按 key 排序保证输出稳定
// 非标量值按字符串输出
func Attributes(attrs telemetry.Attributes) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		kvs = append(kvs, keyValue(k, attrs[k]))
	}
	return kvs
}

func keyValue(k string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(k, val)
	case bool:
		return attribute.Bool(k, val)
	case int:
		return attribute.Int(k, val)
	case int32:
		return attribute.Int64(k, int64(val))
	case int64:
		return attribute.Int64(k, val)
	case uint32:
		return attribute.Int64(k, int64(val))
	case float32:
		return attribute.Float64(k, float64(val))
	case float64:
		return attribute.Float64(k, val)
	case fmt.Stringer:
		return attribute.String(k, val.String())
	default:
		return attribute.String(k, fmt.Sprint(val))
	}
}
