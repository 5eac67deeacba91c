package dto

import "otelapi/internal/model"

// ProductListResponse 商品列表
type ProductListResponse struct {
	Count    int             `json:"count"`
	Products []model.Product `json:"products"`
}
