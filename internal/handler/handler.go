package handler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"otelapi/internal/model"
	"otelapi/pkg/telemetry"
)

// Store 演示数据存储
type Store interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	CreateUser(ctx context.Context, name, email string, role model.Role) (model.User, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
}

// Randomizer 演示接口使用的随机源，测试里替换成固定值
type Randomizer interface {
	Float64() float64
	Int63n(n int64) int64
	Intn(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandomizer 并发安全的随机源
func NewRandomizer(seed int64) Randomizer {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Int63n(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int63n(n)
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// TelemetrySource 暴露 exporter 的统计与显式 flush
type TelemetrySource interface {
	Stats() telemetry.Stats
	Resource() telemetry.ResourceDescriptor
	Flush() error
}

// Options 演示接口的行为参数
type Options struct {
	ServiceName         string
	Version             string
	Environment         string
	DBLatency           time.Duration
	ProductsFailureRate float64
	SlowMin             time.Duration
	SlowMax             time.Duration
}

// Handler 持有所有接口的依赖
type Handler struct {
	store     Store
	opts      Options
	rand      Randomizer
	telemetry TelemetrySource
	ingester  telemetry.Ingester
	startedAt time.Time
}

// Option Handler 可选项
type Option func(*Handler)

// WithRandomizer 替换随机源
func WithRandomizer(r Randomizer) Option {
	return func(h *Handler) {
		if r != nil {
			h.rand = r
		}
	}
}

// WithTelemetry 挂上 exporter，未设置时 /api/telemetry/* 返回 503
func WithTelemetry(src TelemetrySource) Option {
	return func(h *Handler) {
		h.telemetry = src
	}
}

// WithIngester 设置子 span 的接收方
func WithIngester(ing telemetry.Ingester) Option {
	return func(h *Handler) {
		h.ingester = ing
	}
}

func New(store Store, opts Options, options ...Option) *Handler {
	h := &Handler{
		store:     store,
		opts:      opts,
		rand:      NewRandomizer(time.Now().UnixNano()),
		startedAt: time.Now(),
	}
	for _, o := range options {
		o(h)
	}
	return h
}

// sleep 可被请求取消的等待
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// queryDB 模拟一次数据库访问，记录为子 span
func (h *Handler) queryDB(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, end := telemetry.StartSpan(ctx, h.ingester, "db."+operation, telemetry.Attributes{
		"db.system":    "memory",
		"db.operation": operation,
	})

	err := sleep(ctx, h.opts.DBLatency)
	if err == nil {
		err = fn(ctx)
	}
	end(err)
	return err
}
