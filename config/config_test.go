package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(env.Options{Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, "signoz-example-go", cfg.ServiceName)
	assert.Equal(t, "1.0.0", cfg.ServiceVersion)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, []string{"otlp"}, cfg.TelemetryTransports)
	assert.Equal(t, "localhost:4317", cfg.TelemetryEndpoint)
	assert.Equal(t, 60*time.Second, cfg.FlushInterval())
	assert.Equal(t, 512, cfg.TelemetryMaxBatchSize)
	assert.Zero(t, cfg.TelemetryMaxQueueBatches)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout())
	assert.InDelta(t, 0.2, cfg.ProductsFailureRate, 1e-9)
	assert.False(t, cfg.NeedsRedis())
	assert.True(t, cfg.IsDevelopment())
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(env.Options{Environment: map[string]string{
		"SERVICE_NAME":                "checkout",
		"ENVIRONMENT":                 "production",
		"TELEMETRY_TRANSPORTS":        " Log, redis ,",
		"TELEMETRY_FLUSH_INTERVAL_MS": "250",
		"TELEMETRY_MAX_BATCH_SIZE":    "3",
	}})
	require.NoError(t, err)

	assert.Equal(t, "checkout", cfg.ServiceName)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"log", "redis"}, cfg.TelemetryTransports)
	assert.True(t, cfg.HasTransport("redis"))
	assert.False(t, cfg.HasTransport("otlp"))
	assert.True(t, cfg.NeedsRedis())
	assert.Equal(t, 250*time.Millisecond, cfg.FlushInterval())
	assert.Equal(t, 3, cfg.TelemetryMaxBatchSize)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	_, err := Parse(env.Options{Environment: map[string]string{
		"TELEMETRY_TRANSPORTS":        "kafka",
		"TELEMETRY_MAX_BATCH_SIZE":    "0",
		"TELEMETRY_MAX_QUEUE_BATCHES": "-1",
		"PRODUCTS_FAILURE_RATE":       "1.5",
	}})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, `unknown telemetry transport "kafka"`)
	assert.Contains(t, msg, "TELEMETRY_MAX_BATCH_SIZE")
	assert.Contains(t, msg, "TELEMETRY_MAX_QUEUE_BATCHES")
	assert.Contains(t, msg, "PRODUCTS_FAILURE_RATE")
}

func TestParseRejectsMalformedValue(t *testing.T) {
	_, err := Parse(env.Options{Environment: map[string]string{
		"TELEMETRY_FLUSH_INTERVAL_MS": "soon",
	}})
	assert.Error(t, err)
}

func TestRabbitMQURL(t *testing.T) {
	cfg := &Config{
		RabbitMQUsername: "guest",
		RabbitMQPassword: "secret",
		RabbitMQAddr:     "mq",
		RabbitMQPort:     "5672",
		RabbitMQVhost:    "/",
	}
	assert.Equal(t, "amqp://guest:secret@mq:5672/", cfg.GetRabbitMQURL())
}
