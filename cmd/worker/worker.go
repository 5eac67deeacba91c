package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"otelapi/config"
	"otelapi/pkg/logger"
	"otelapi/storage/mq"
)

const (
	workerQueue       = "telemetry.batches.audit"
	workerConsumerTag = "otelapi-worker"
)

// worker 消费 amqp transport 发布的 batch，检查序号缺口并输出摘要
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	client, err := mq.Dial(cfg.GetRabbitMQURL(), logger.Named("mq"))
	if err != nil {
		logger.Logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer client.Close(context.Background())

	if err := client.DeclareTopicExchange(cfg.TelemetryAMQPExchange); err != nil {
		logger.Logger.Fatal("Failed to declare telemetry exchange", zap.Error(err))
	}

	logger.Logger.Info("Worker service starting",
		zap.String("service", cfg.ServiceName+"-worker"),
		zap.String("exchange", cfg.TelemetryAMQPExchange),
		zap.String("routing_key", cfg.TelemetryAMQPRoutingKey),
		zap.String("queue", workerQueue),
	)

	auditor := newBatchAuditor(logger.Named("worker"))
	err = client.Consume(ctx, mq.ConsumeOptions{
		Exchange:      cfg.TelemetryAMQPExchange,
		RoutingKey:    cfg.TelemetryAMQPRoutingKey,
		Queue:         workerQueue,
		ConsumerTag:   workerConsumerTag,
		PrefetchCount: 10,
		Handler:       auditor.Handle,
	})
	if err != nil {
		logger.Logger.Error("Consumer stopped", zap.Error(err))
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}
