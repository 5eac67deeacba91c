package handler

import (
	"context"
	stderrors "errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"

	"otelapi/internal/model/dto"
	"otelapi/pkg/errors"
	"otelapi/pkg/logger"
	"otelapi/pkg/response"
	"otelapi/pkg/telemetry"
)

// TelemetryStats exporter 运行统计
// GET /api/telemetry/stats
func (h *Handler) TelemetryStats(ctx context.Context, c *app.RequestContext) {
	if h.telemetry == nil {
		response.Error(ctx, c, errors.TelemetryUnavailable)
		return
	}

	response.Success(ctx, c, dto.TelemetryStatsResponse{
		Resource: h.telemetry.Resource(),
		Stats:    h.telemetry.Stats(),
	})
}

// FlushTelemetry 显式 flush，只把当前 batch 交给发送队列，不等待发送结果
// POST /api/telemetry/flush
func (h *Handler) FlushTelemetry(ctx context.Context, c *app.RequestContext) {
	if h.telemetry == nil {
		response.Error(ctx, c, errors.TelemetryUnavailable)
		return
	}

	if err := h.telemetry.Flush(); err != nil {
		logger.Logger.Warn("Telemetry flush rejected", zap.Error(err))
		msg := "Telemetry queue is full"
		if stderrors.Is(err, telemetry.ErrExporterClosed) {
			msg = "Telemetry exporter is shutting down"
		}
		response.Error(ctx, c, errors.TelemetryUnavailable.WithMessage(msg))
		return
	}

	c.JSON(consts.StatusAccepted, response.SuccessResponse{
		Data: dto.TelemetryStatsResponse{
			Resource: h.telemetry.Resource(),
			Stats:    h.telemetry.Stats(),
		},
	})
}
