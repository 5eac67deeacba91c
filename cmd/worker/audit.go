package main

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"otelapi/pkg/transport"
)

// batchAuditor 按实例记录最近一次的 batch 序号，发现缺口说明有 batch 被丢弃或发送失败
type batchAuditor struct {
	logger *zap.Logger

	mu      sync.Mutex
	lastSeq map[string]uint64
	missing uint64
}

func newBatchAuditor(logger *zap.Logger) *batchAuditor {
	return &batchAuditor{
		logger:  logger,
		lastSeq: make(map[string]uint64),
	}
}

func (a *batchAuditor) Handle(ctx context.Context, body []byte) error {
	wb, err := transport.DecodeBatch(body)
	if err != nil {
		return fmt.Errorf("decode telemetry batch: %w", err)
	}

	instance := wb.Resource.ServiceName + "/" + wb.Resource.InstanceID
	gap := a.observe(instance, wb.Seq)

	errorSpans := 0
	for _, ev := range wb.Events {
		if ev.Type == "span" && ev.Status == "error" {
			errorSpans++
		}
	}

	fields := []zap.Field{
		zap.String("instance", instance),
		zap.Int64("batch_id", wb.BatchID),
		zap.Uint64("seq", wb.Seq),
		zap.String("reason", wb.Reason),
		zap.Int("spans", wb.Spans()),
		zap.Int("metrics", wb.Metrics()),
		zap.Int("error_spans", errorSpans),
	}
	if gap > 0 {
		a.logger.Warn("Telemetry batches missing", append(fields, zap.Uint64("missing", gap))...)
		return nil
	}
	a.logger.Info("Telemetry batch received", fields...)
	return nil
}

// observe 返回本次序号之前缺失的 batch 数，重复或乱序的序号不计入
func (a *batchAuditor) observe(instance string, seq uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	last, seen := a.lastSeq[instance]
	if seen && seq <= last {
		return 0
	}
	a.lastSeq[instance] = seq

	if !seen || seq == last+1 {
		return 0
	}
	gap := seq - last - 1
	a.missing += gap
	return gap
}

func (a *batchAuditor) Missing() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.missing
}
