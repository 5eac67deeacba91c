package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"go.opentelemetry.io/otel/propagation"

	"otelapi/internal/handler"
	"otelapi/internal/middleware"
	"otelapi/pkg/telemetry"
	"otelapi/storage/redis"
)

// Deps 路由与中间件需要的依赖
type Deps struct {
	Handler      *handler.Handler
	Ingester     telemetry.Ingester
	Propagator   propagation.TextMapPropagator
	IsProduction bool
	// RateLimit 为 nil 时不限流
	RateLimit *middleware.RateLimitConfig
	Redis     *redis.Client
}

func Register(h *server.Hertz, deps Deps) {
	// 顺序：request id -> telemetry -> recover -> CORS -> 限流
	h.Use(middleware.RequestIDMiddleware())
	h.Use(middleware.TelemetryMiddlewareWithConfig(deps.Ingester, middleware.TelemetryConfig{
		Propagator: deps.Propagator,
	}))
	h.Use(middleware.RecoverMiddleware(deps.IsProduction))
	h.Use(middleware.CORSMiddleware())
	if deps.RateLimit != nil && deps.Redis != nil {
		h.Use(middleware.RateLimitMiddleware(deps.Redis, *deps.RateLimit))
	}

	hd := deps.Handler
	h.GET("/", hd.Index)

	api := h.Group("/api")
	{
		api.GET("/health", hd.Health)
		api.GET("/products", hd.ListProducts)
		api.GET("/slow", hd.Slow)
		api.GET("/random-error", hd.RandomError)
		api.GET("/redirect-demo", hd.RedirectDemo)
	}

	users := api.Group("/users")
	{
		users.GET("", hd.ListUsers)
		users.POST("", hd.CreateUser)
		users.GET("/:id", hd.GetUser)
	}

	tel := api.Group("/telemetry")
	{
		tel.GET("/stats", hd.TelemetryStats)
		tel.POST("/flush", hd.FlushTelemetry)
	}
}
