package main

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"otelapi/config"
	"otelapi/internal/handler"
	"otelapi/internal/middleware"
	"otelapi/internal/router"
	"otelapi/internal/store"
	"otelapi/pkg/logger"
	"otelapi/pkg/metrics"
	otelx "otelapi/pkg/otel"
	"otelapi/pkg/snowflake"
	"otelapi/pkg/telemetry"
	"otelapi/pkg/transport"
	"otelapi/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if err := logger.Init(logger.Options{
		Level:       cfg.LoggerLevel,
		Format:      cfg.LoggerFormat,
		OutputPath:  cfg.LoggerOutputPath,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Logger.Error("Server exited with error", zap.Error(err))
		logger.Sync()
		log.Fatal(err)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	desc := telemetry.ResourceDescriptor{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		Namespace:      cfg.ServiceNS,
		InstanceID:     uuid.NewString(),
	}

	// 初始化存储层，只连接配置里用到的外部服务
	st, err := storage.Init(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	ids, err := snowflake.NewGenerator(cfg.SnowflakeMachineID, cfg.SnowflakeDataCenter)
	if err != nil {
		return err
	}

	tr, err := transport.Build(ctx, transport.Options{
		Names: cfg.TelemetryTransports,
		OTLP: transport.OTLPOptions{
			Endpoint: cfg.TelemetryEndpoint,
			Insecure: cfg.TelemetryInsecure,
			Timeout:  cfg.ExportTimeout(),
		},
		HTTPEndpoint:    cfg.TelemetryHTTPEndpoint,
		Timeout:         cfg.ExportTimeout(),
		RedisKey:        cfg.TelemetryRedisKey,
		RedisMaxLen:     cfg.TelemetryRedisMaxLen,
		AMQPExchange:    cfg.TelemetryAMQPExchange,
		AMQPRoutingKey:  cfg.TelemetryAMQPRoutingKey,
		BreakerFailures: cfg.TelemetryBreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown(),
	}, transport.Deps{
		Logger: logger.Named("transport"),
		Redis:  st.Redis,
		MQ:     st.MQ,
	})
	if err != nil {
		return err
	}

	exporter, err := telemetry.NewExporter(telemetry.Config{
		Resource:        desc,
		FlushInterval:   cfg.FlushInterval(),
		MaxBatchSize:    cfg.TelemetryMaxBatchSize,
		MaxQueueBatches: cfg.TelemetryMaxQueueBatches,
		ExportTimeout:   cfg.ExportTimeout(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
	}, tr,
		telemetry.WithLogger(logger.Named("telemetry")),
		telemetry.WithBatchIDFunc(ids.NextID),
	)
	if err != nil {
		_ = tr.Close(ctx)
		return err
	}

	// 请求内的 Redis 命令（限流）作为子 span 记录
	st.Redis.Instrument(exporter, cfg.RedisDB)

	mp, selfMetrics := initSelfMetrics(ctx, cfg, desc, exporter)

	handlerOpts := handler.Options{
		ServiceName:         cfg.ServiceName,
		Version:             cfg.ServiceVersion,
		Environment:         cfg.Environment,
		DBLatency:           cfg.SimulatedDBLatency(),
		ProductsFailureRate: cfg.ProductsFailureRate,
	}
	handlerOpts.SlowMin, handlerOpts.SlowMax = cfg.SlowRange()

	deps := router.Deps{
		Handler: handler.New(store.NewMemory(), handlerOpts,
			handler.WithTelemetry(exporter),
			handler.WithIngester(exporter),
		),
		Ingester:     exporter,
		Propagator:   otelx.SetPropagator(),
		IsProduction: cfg.IsProduction(),
		Redis:        st.Redis,
	}
	if cfg.RateLimitEnabled {
		rl := middleware.NewRateLimitConfig(cfg.RateLimitRPS)
		deps.RateLimit = &rl
	}

	addr := net.JoinHostPort(cfg.ServerHost, cfg.ServerPort)
	h := server.New(
		server.WithHostPorts(addr),
		server.WithExitWaitTime(5*time.Second),
	)
	router.Register(h, deps)

	logger.Logger.Info("Server starting",
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.ServiceVersion),
		zap.String("addr", addr),
		zap.String("environment", cfg.Environment),
		zap.Strings("transports", cfg.TelemetryTransports),
		zap.Duration("flush_interval", cfg.FlushInterval()),
		zap.Int("max_batch_size", cfg.TelemetryMaxBatchSize),
	)

	// Spin 收到 SIGINT/SIGTERM 后优雅关闭 HTTP server 再返回
	h.Spin()

	logger.Logger.Info("HTTP server stopped, draining telemetry...")

	// exporter 内部按 ShutdownTimeout 限时，这里多留一点余量给 transport 关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout()+2*time.Second)
	defer cancel()

	if err := exporter.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Warn("Telemetry exporter did not drain cleanly", zap.Error(err))
	}
	stats := exporter.Stats()
	logger.Logger.Info("Telemetry exporter stopped",
		zap.Uint64("ingested", stats.Ingested),
		zap.Uint64("batches_exported", stats.BatchesExported),
		zap.Uint64("batches_failed", stats.BatchesFailed),
		zap.Uint64("batches_dropped", stats.BatchesDropped),
	)

	if err := tr.Close(shutdownCtx); err != nil {
		logger.Logger.Warn("Failed to close telemetry transport", zap.Error(err))
	}

	if selfMetrics != nil {
		if err := selfMetrics.Unregister(); err != nil {
			logger.Logger.Warn("Failed to unregister exporter metrics", zap.Error(err))
		}
	}
	if mp != nil {
		if err := mp.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Warn("Failed to shutdown meter provider", zap.Error(err))
		}
	}

	logger.Logger.Info("Server shut down gracefully")
	return nil
}

// initSelfMetrics 只有启用 otlp transport 时才导出 exporter 自身指标，失败不影响启动
func initSelfMetrics(ctx context.Context, cfg *config.Config, desc telemetry.ResourceDescriptor, src metrics.StatsSource) (*sdkmetric.MeterProvider, *metrics.ExporterMetrics) {
	if !cfg.TelemetrySelfMetrics || !cfg.HasTransport("otlp") {
		return nil, nil
	}

	res, err := otelx.NewResource(ctx, desc)
	if err != nil {
		logger.Logger.Warn("Failed to build OpenTelemetry resource", zap.Error(err))
		return nil, nil
	}

	mp, err := otelx.InitMeterProvider(ctx, res, otelx.MeterOptions{
		Endpoint: cfg.TelemetryEndpoint,
		Insecure: cfg.TelemetryInsecure,
		Interval: cfg.MetricsInterval(),
		Timeout:  cfg.ExportTimeout(),
	})
	if err != nil {
		logger.Logger.Warn("Self metrics disabled", zap.Error(err))
		return nil, nil
	}

	m, err := metrics.RegisterExporterMetrics(mp.Meter("otelapi/telemetry"), src)
	if err != nil {
		logger.Logger.Warn("Failed to register exporter metrics", zap.Error(err))
		_ = mp.Shutdown(ctx)
		return nil, nil
	}

	return mp, m
}
