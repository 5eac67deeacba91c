package storage

import (
	"context"

	"go.uber.org/zap"

	"otelapi/pkg/logger"
)

// Close 优雅关闭所有存储连接
// 关闭顺序：MQ -> Redis，exporter 必须在此之前已经 Shutdown
func (s *Storage) Close(ctx context.Context) {
	if s == nil {
		return
	}

	logger.Logger.Info("Closing storage connections...")

	if s.MQ != nil {
		if err := s.MQ.Close(ctx); err != nil {
			logger.Logger.Error("Failed to close message queue", zap.Error(err))
		} else {
			logger.Logger.Info("Message queue closed successfully")
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(ctx); err != nil {
			logger.Logger.Error("Failed to close Redis connection", zap.Error(err))
		} else {
			logger.Logger.Info("Redis connection closed successfully")
		}
	}

	logger.Logger.Info("All storage connections closed")
}
