package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"otelapi/pkg/telemetry"
)

// ErrBreakerOpen 熔断中，batch 直接丢弃不会发送
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // 关闭状态：正常工作
	BreakerOpen                         // 开启状态：熔断中
	BreakerHalfOpen                     // 半开状态：放行一次试探
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker 熔断装饰器：连续失败 maxFailures 次后熔断，resetTimeout 之后半开放行一次试探
// collector 长时间不可用时避免每个 batch 都等满 ExportTimeout
type Breaker struct {
	next         telemetry.Transport
	maxFailures  int
	resetTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time

	mu           sync.Mutex
	state        BreakerState
	failures     int
	lastFailTime time.Time
	probing      bool
}

func NewBreaker(next telemetry.Transport, maxFailures int, resetTimeout time.Duration, logger *zap.Logger) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		next:         next,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		logger:       logger.With(zap.String("breaker", next.Name())),
		now:          time.Now,
	}
}

func (cb *Breaker) Name() string { return cb.next.Name() }

func (cb *Breaker) Send(ctx context.Context, b *telemetry.Batch, res telemetry.ResourceDescriptor) error {
	if !cb.allowRequest() {
		return ErrBreakerOpen
	}

	err := cb.next.Send(ctx, b, res)
	cb.recordResult(err)
	return err
}

func (cb *Breaker) Close(ctx context.Context) error {
	return cb.next.Close(ctx)
}

// State 当前状态
func (cb *Breaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *Breaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if cb.now().Sub(cb.lastFailTime) < cb.resetTimeout {
			return false
		}
		cb.transitionLocked(BreakerHalfOpen)
		cb.probing = true
		return true
	case BreakerHalfOpen:
		// 同一时间只放行一次试探
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return false
	}
}

func (cb *Breaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false

	if err == nil {
		cb.failures = 0
		if cb.state != BreakerClosed {
			cb.transitionLocked(BreakerClosed)
		}
		return
	}

	cb.failures++
	cb.lastFailTime = cb.now()

	switch cb.state {
	case BreakerClosed:
		if cb.failures >= cb.maxFailures {
			cb.transitionLocked(BreakerOpen)
		}
	case BreakerHalfOpen:
		cb.transitionLocked(BreakerOpen)
	}
}

func (cb *Breaker) transitionLocked(to BreakerState) {
	from := cb.state
	cb.state = to

	fields := []zap.Field{
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("failures", cb.failures),
	}
	if to == BreakerOpen {
		cb.logger.Warn("Circuit breaker transitioned", append(fields, zap.Duration("reset_timeout", cb.resetTimeout))...)
		return
	}
	cb.logger.Info("Circuit breaker transitioned", fields...)
}
