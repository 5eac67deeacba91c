package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"otelapi/internal/model"
	"otelapi/internal/model/dto"
	"otelapi/pkg/errors"
	"otelapi/pkg/logger"
	"otelapi/pkg/response"
)

// ListProducts 商品列表，按配置的概率模拟数据库故障
// GET /api/products
func (h *Handler) ListProducts(ctx context.Context, c *app.RequestContext) {
	var products []model.Product
	err := h.queryDB(ctx, "list_products", func(ctx context.Context) (err error) {
		if h.rand.Float64() < h.opts.ProductsFailureRate {
			return errors.ProductsUnavailable
		}
		products, err = h.store.ListProducts(ctx)
		return err
	})
	if err != nil {
		logger.Logger.Error("Failed to list products", zap.Error(err))
		response.Error(ctx, c, errors.ProductsUnavailable)
		return
	}

	response.Success(ctx, c, dto.ProductListResponse{Count: len(products), Products: products})
}
