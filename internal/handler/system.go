package handler

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"

	"otelapi/internal/model/dto"
	"otelapi/pkg/errors"
	"otelapi/pkg/logger"
	"otelapi/pkg/response"
)

// Index 接口概览
// GET /
func (h *Handler) Index(ctx context.Context, c *app.RequestContext) {
	response.Success(ctx, c, dto.IndexResponse{
		Message: "Welcome to " + h.opts.ServiceName,
		Version: h.opts.Version,
		Endpoints: map[string]string{
			"health":          "/api/health",
			"users":           "/api/users",
			"user":            "/api/users/:id",
			"products":        "/api/products",
			"slow":            "/api/slow",
			"random_error":    "/api/random-error",
			"redirect":        "/api/redirect-demo",
			"telemetry_stats": "/api/telemetry/stats",
			"telemetry_flush": "/api/telemetry/flush",
		},
	})
}

// Health 健康检查
// GET /api/health
func (h *Handler) Health(ctx context.Context, c *app.RequestContext) {
	response.Success(ctx, c, dto.HealthResponse{
		Status:        "healthy",
		Service:       h.opts.ServiceName,
		Version:       h.opts.Version,
		Environment:   h.opts.Environment,
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	})
}

// Slow 随机延迟后返回，客户端断开时提前结束
// GET /api/slow
func (h *Handler) Slow(ctx context.Context, c *app.RequestContext) {
	delay := h.opts.SlowMin
	if span := h.opts.SlowMax - h.opts.SlowMin; span > 0 {
		delay += time.Duration(h.rand.Int63n(int64(span) + 1))
	}

	logger.Logger.Info("Processing slow request", zap.Duration("delay", delay))

	if err := sleep(ctx, delay); err != nil {
		logger.Logger.Warn("Slow request cancelled", zap.Error(err))
		response.Error(ctx, c, errors.InternalServerError.WithMessage("request cancelled"))
		return
	}

	response.Success(ctx, c, dto.SlowResponse{
		Message:    "Slow operation completed",
		Duration:   delay.String(),
		DurationMS: delay.Milliseconds(),
	})
}

// RandomError 随机返回 404、500 或成功
// GET /api/random-error
func (h *Handler) RandomError(ctx context.Context, c *app.RequestContext) {
	switch h.rand.Intn(3) {
	case 0:
		logger.Logger.Warn("Random error: resource not found")
		response.Error(ctx, c, errors.ResourceNotFound)
	case 1:
		logger.Logger.Error("Random error: internal server error")
		response.Error(ctx, c, errors.InternalServerError.WithMessage("Random internal error"))
	default:
		response.Success(ctx, c, dto.OutcomeResponse{
			Message: "Request succeeded",
			Type:    "success",
		})
	}
}

// RedirectDemo 302 到健康检查
// GET /api/redirect-demo
func (h *Handler) RedirectDemo(ctx context.Context, c *app.RequestContext) {
	c.Redirect(consts.StatusFound, []byte("/api/health"))
}
