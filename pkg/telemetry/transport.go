package telemetry

import "context"

// Transport 负责把 batch 发送到 collector，对具体协议无感知
// Send 返回的错误不会重试，exporter 只记录日志并丢弃 batch
type Transport interface {
	Name() string
	Send(ctx context.Context, batch *Batch, res ResourceDescriptor) error
	Close(ctx context.Context) error
}

// Ingester 事件生产方（HTTP 中间件、handler）依赖的最小接口
type Ingester interface {
	Ingest(ev Event)
}

// TransportFunc 把普通函数适配为 Transport，主要用于测试和简单场景
type TransportFunc func(ctx context.Context, batch *Batch, res ResourceDescriptor) error

func (f TransportFunc) Name() string { return "func" }

func (f TransportFunc) Send(ctx context.Context, batch *Batch, res ResourceDescriptor) error {
	return f(ctx, batch, res)
}

func (f TransportFunc) Close(context.Context) error { return nil }
