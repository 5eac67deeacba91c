package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// Config 进程级配置，Load 之后不再修改
type Config struct {
	// 服务配置
	ServerPort     string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost     string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName    string `env:"SERVICE_NAME" envDefault:"signoz-example-go"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
	ServiceNS      string `env:"SERVICE_NAMESPACE" envDefault:""`

	// 遥测导出配置
	TelemetryTransports        []string `env:"TELEMETRY_TRANSPORTS" envSeparator:"," envDefault:"otlp"` // otlp, log, http, redis, amqp
	TelemetryEndpoint          string   `env:"TELEMETRY_ENDPOINT" envDefault:"localhost:4317"`
	TelemetryInsecure          bool     `env:"TELEMETRY_INSECURE" envDefault:"true"`
	TelemetryHTTPEndpoint      string   `env:"TELEMETRY_HTTP_ENDPOINT" envDefault:"http://localhost:4318/v1/batches"`
	TelemetryFlushIntervalMS   int      `env:"TELEMETRY_FLUSH_INTERVAL_MS" envDefault:"60000"`
	TelemetryMaxBatchSize      int      `env:"TELEMETRY_MAX_BATCH_SIZE" envDefault:"512"`
	TelemetryMaxQueueBatches   int      `env:"TELEMETRY_MAX_QUEUE_BATCHES" envDefault:"0"` // 0 表示按事件容量折算
	TelemetryExportTimeoutMS   int      `env:"TELEMETRY_EXPORT_TIMEOUT_MS" envDefault:"10000"`
	TelemetryShutdownTimeoutMS int      `env:"TELEMETRY_SHUTDOWN_TIMEOUT_MS" envDefault:"5000"`
	TelemetryRedisKey          string   `env:"TELEMETRY_REDIS_KEY" envDefault:"telemetry:batches"`
	TelemetryRedisMaxLen       int64    `env:"TELEMETRY_REDIS_MAX_LEN" envDefault:"1000"`
	TelemetryAMQPExchange      string   `env:"TELEMETRY_AMQP_EXCHANGE" envDefault:"telemetry"`
	TelemetryAMQPRoutingKey    string   `env:"TELEMETRY_AMQP_ROUTING_KEY" envDefault:"telemetry.batch"`
	TelemetryBreakerFailures   int      `env:"TELEMETRY_BREAKER_FAILURES" envDefault:"5"`
	TelemetryBreakerCooldownMS int      `env:"TELEMETRY_BREAKER_COOLDOWN_MS" envDefault:"30000"`
	TelemetrySelfMetrics       bool     `env:"TELEMETRY_SELF_METRICS" envDefault:"true"`
	TelemetryMetricsIntervalMS int      `env:"TELEMETRY_METRICS_INTERVAL_MS" envDefault:"60000"`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"otelapi"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 速率限制配置, 依赖 Redis，默认关闭
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"100"` // 每秒请求数

	// 演示接口
	SimulatedDBLatencyMS int     `env:"SIMULATED_DB_LATENCY_MS" envDefault:"100"`
	ProductsFailureRate  float64 `env:"PRODUCTS_FAILURE_RATE" envDefault:"0.2"`
	SlowMinMS            int     `env:"SLOW_MIN_MS" envDefault:"1000"`
	SlowMaxMS            int     `env:"SLOW_MAX_MS" envDefault:"3000"`
}

// Load 先加载 .env（不存在时忽略），再解析环境变量并校验
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}
	return Parse(env.Options{})
}

// Parse 按给定选项解析配置，测试里通过 Options.Environment 注入变量
func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	transports := make([]string, 0, len(c.TelemetryTransports))
	for _, t := range c.TelemetryTransports {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			transports = append(transports, t)
		}
	}
	c.TelemetryTransports = transports
}

var knownTransports = map[string]struct{}{
	"otlp": {}, "log": {}, "http": {}, "redis": {}, "amqp": {},
}

// Validate 汇总所有配置错误一次性返回
func (c *Config) Validate() error {
	var err error

	if c.ServiceName == "" {
		err = multierr.Append(err, errors.New("SERVICE_NAME is required"))
	}
	if c.TelemetryFlushIntervalMS <= 0 {
		err = multierr.Append(err, errors.New("TELEMETRY_FLUSH_INTERVAL_MS must be positive"))
	}
	if c.TelemetryMaxBatchSize <= 0 {
		err = multierr.Append(err, errors.New("TELEMETRY_MAX_BATCH_SIZE must be positive"))
	}
	if c.TelemetryMaxQueueBatches < 0 {
		err = multierr.Append(err, errors.New("TELEMETRY_MAX_QUEUE_BATCHES must not be negative"))
	}
	if c.TelemetryExportTimeoutMS <= 0 || c.TelemetryShutdownTimeoutMS <= 0 {
		err = multierr.Append(err, errors.New("telemetry export and shutdown timeouts must be positive"))
	}
	if len(c.TelemetryTransports) == 0 {
		err = multierr.Append(err, errors.New("TELEMETRY_TRANSPORTS must name at least one transport"))
	}
	for _, t := range c.TelemetryTransports {
		if _, ok := knownTransports[t]; !ok {
			err = multierr.Append(err, fmt.Errorf("unknown telemetry transport %q", t))
		}
	}
	if c.ProductsFailureRate < 0 || c.ProductsFailureRate > 1 {
		err = multierr.Append(err, errors.New("PRODUCTS_FAILURE_RATE must be within [0, 1]"))
	}
	if c.SlowMinMS < 0 || c.SlowMaxMS < c.SlowMinMS {
		err = multierr.Append(err, errors.New("SLOW_MIN_MS/SLOW_MAX_MS must satisfy 0 <= min <= max"))
	}
	if c.RateLimitEnabled && c.RateLimitRPS <= 0 {
		err = multierr.Append(err, errors.New("RATE_LIMIT_RPS must be positive when rate limiting is enabled"))
	}

	return err
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// HasTransport 是否启用了某个 transport
func (c *Config) HasTransport(name string) bool {
	for _, t := range c.TelemetryTransports {
		if t == name {
			return true
		}
	}
	return false
}

// NeedsRedis redis transport 或限流开启时需要连接 Redis
func (c *Config) NeedsRedis() bool {
	return c.HasTransport("redis") || c.RateLimitEnabled
}

func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.TelemetryFlushIntervalMS) * time.Millisecond
}

func (c *Config) ExportTimeout() time.Duration {
	return time.Duration(c.TelemetryExportTimeoutMS) * time.Millisecond
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.TelemetryShutdownTimeoutMS) * time.Millisecond
}

func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.TelemetryBreakerCooldownMS) * time.Millisecond
}

func (c *Config) MetricsInterval() time.Duration {
	return time.Duration(c.TelemetryMetricsIntervalMS) * time.Millisecond
}

func (c *Config) SimulatedDBLatency() time.Duration {
	return time.Duration(c.SimulatedDBLatencyMS) * time.Millisecond
}

// SlowRange /api/slow 的随机延迟区间
func (c *Config) SlowRange() (time.Duration, time.Duration) {
	return time.Duration(c.SlowMinMS) * time.Millisecond, time.Duration(c.SlowMaxMS) * time.Millisecond
}
