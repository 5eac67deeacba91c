package dto

import "otelapi/pkg/telemetry"

// HealthResponse 健康检查
type HealthResponse struct {
	Status        string  `json:"status"`
	Service       string  `json:"service"`
	Version       string  `json:"version"`
	Environment   string  `json:"environment"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// IndexResponse 根路径的接口概览
type IndexResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// SlowResponse /api/slow 的响应
type SlowResponse struct {
	Message    string `json:"message"`
	Duration   string `json:"duration"`
	DurationMS int64  `json:"duration_ms"`
}

// OutcomeResponse /api/random-error 成功时的响应
type OutcomeResponse struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// TelemetryStatsResponse exporter 统计
type TelemetryStatsResponse struct {
	Resource telemetry.ResourceDescriptor `json:"resource"`
	Stats    telemetry.Stats              `json:"stats"`
}
