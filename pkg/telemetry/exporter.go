package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultFlushInterval   = 60 * time.Second
	DefaultMaxBatchSize    = 512
	DefaultMaxQueueSize    = 16384
	DefaultExportTimeout   = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// State exporter 状态机
//
//	Idle -> Accumulating -> Flushing -> Idle
//	任意状态 -> Draining -> Terminated
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateFlushing
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateFlushing:
		return "flushing"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config exporter 配置，创建后不可修改，零值使用默认值
// MaxQueueBatches 为 0 时按 DefaultMaxQueueSize 个事件折算队列深度
type Config struct {
	Resource        ResourceDescriptor
	FlushInterval   time.Duration
	MaxBatchSize    int
	MaxQueueBatches int
	ExportTimeout   time.Duration
	ShutdownTimeout time.Duration
}

func (c *Config) applyDefaults() error {
	if c.FlushInterval < 0 || c.MaxBatchSize < 0 || c.MaxQueueBatches < 0 ||
		c.ExportTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("telemetry exporter config must not contain negative values: %+v", *c)
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.MaxQueueBatches == 0 {
		c.MaxQueueBatches = (DefaultMaxQueueSize + c.MaxBatchSize - 1) / c.MaxBatchSize
	}
	if c.ExportTimeout == 0 {
		c.ExportTimeout = DefaultExportTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	return nil
}

// Option exporter 可选项
type Option func(*Exporter)

// WithLogger 设置内部日志，默认不输出
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBatchIDFunc 设置 batch id 生成函数（例如 snowflake），失败时退化为序号
func WithBatchIDFunc(fn func() (int64, error)) Option {
	return func(e *Exporter) {
		e.nextID = fn
	}
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// Stats exporter 运行统计
type Stats struct {
	State           State     `json:"state"`
	Ingested        uint64    `json:"ingested"`
	Dropped         uint64    `json:"dropped"`
	OpenBatchSize   int       `json:"open_batch_size"`
	QueuedBatches   int       `json:"queued_batches"`
	BatchesExported uint64    `json:"batches_exported"`
	BatchesFailed   uint64    `json:"batches_failed"`
	BatchesDropped  uint64    `json:"batches_dropped"`
	EventsExported  uint64    `json:"events_exported"`
	LastFlush       time.Time `json:"last_flush"`
}

// Exporter 批量导出 telemetry 事件
//
// Ingest 只在互斥锁内追加事件；满 MaxBatchSize、定时器到期、显式 Flush 或 Shutdown 时
// 在同一把锁内交换出当前 batch 并放入有界发送队列，由唯一的发送 goroutine 调用 Transport。
// 网络发送永远不会阻塞 Ingest。
type Exporter struct {
	cfg       Config
	transport Transport
	logger    *zap.Logger
	nextID    func() (int64, error)
	now       func() time.Time

	mu        sync.Mutex
	state     State
	open      []Event
	openedAt  time.Time
	lastFlush time.Time
	seq       uint64

	ingested       atomic.Uint64
	dropped        atomic.Uint64
	exported       atomic.Uint64
	failed         atomic.Uint64
	batchesDropped atomic.Uint64
	eventsExported atomic.Uint64
	inFlight       atomic.Int32

	pending     chan *Batch
	rearm       chan struct{}
	stop        chan struct{}
	loopDone    chan struct{}
	senderDone  chan struct{}
	sendCtx     context.Context
	cancelSends context.CancelFunc

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewExporter 创建 exporter 并启动定时 flush 与发送 goroutine
func NewExporter(cfg Config, transport Transport, opts ...Option) (*Exporter, error) {
	if transport == nil {
		return nil, errors.New("telemetry exporter requires a transport")
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	e := &Exporter{
		cfg:        cfg,
		transport:  transport,
		logger:     zap.NewNop(),
		now:        time.Now,
		pending:    make(chan *Batch, cfg.MaxQueueBatches),
		rearm:      make(chan struct{}, 1),
		stop:       make(chan struct{}),
		loopDone:   make(chan struct{}),
		senderDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.sendCtx, e.cancelSends = context.WithCancel(context.Background())
	now := e.now()
	e.open = make([]Event, 0, cfg.MaxBatchSize)
	e.openedAt = now
	e.lastFlush = now

	go e.run()
	go e.send()

	e.logger.Info("Telemetry exporter started",
		zap.String("transport", transport.Name()),
		zap.String("service", cfg.Resource.ServiceName),
		zap.Duration("flush_interval", cfg.FlushInterval),
		zap.Int("max_batch_size", cfg.MaxBatchSize),
		zap.Int("max_queue_batches", cfg.MaxQueueBatches),
	)

	return e, nil
}

// Resource 返回创建时绑定的资源描述
func (e *Exporter) Resource() ResourceDescriptor {
	return e.cfg.Resource
}

// Config 返回生效的配置（已填充默认值）
func (e *Exporter) Config() Config {
	return e.cfg
}

// Ingest 追加事件到当前 batch，永远不会把错误暴露给调用方
// 非法事件、关闭后的事件、发送队列满导致的 batch 丢弃只会累加丢弃计数
func (e *Exporter) Ingest(ev Event) {
	if !ev.Valid() {
		e.dropped.Add(1)
		return
	}

	e.mu.Lock()
	if e.state >= StateDraining {
		e.mu.Unlock()
		e.dropped.Add(1)
		return
	}

	e.open = append(e.open, ev)
	e.ingested.Add(1)

	full := len(e.open) >= e.cfg.MaxBatchSize
	if full {
		b := e.swapLocked(FlushReasonSize)
		_ = e.dispatchLocked(b)
	}
	e.mu.Unlock()

	if full {
		e.signalRearm()
	}
}

// Flush 显式 flush：交换当前 batch（即使为空）并交给发送队列，不等待网络发送
func (e *Exporter) Flush() error {
	err := e.flush(FlushReasonManual)
	if err == nil || errors.Is(err, ErrQueueFull) {
		e.signalRearm()
	}
	return err
}

func (e *Exporter) flush(reason FlushReason) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state >= StateDraining {
		return ErrExporterClosed
	}

	return e.dispatchLocked(e.swapLocked(reason))
}

// swapLocked 用新的空 batch 替换当前 batch，调用方需持有 mu
func (e *Exporter) swapLocked(reason FlushReason) *Batch {
	now := e.now()
	e.seq++

	b := &Batch{
		ID:        e.batchIDLocked(),
		Seq:       e.seq,
		Reason:    reason,
		OpenedAt:  e.openedAt,
		FlushedAt: now,
		Events:    e.open,
	}

	e.open = make([]Event, 0, e.cfg.MaxBatchSize)
	e.openedAt = now
	e.lastFlush = now

	return b
}

func (e *Exporter) batchIDLocked() int64 {
	if e.nextID != nil {
		id, err := e.nextID()
		if err == nil {
			return id
		}
		e.logger.Debug("Batch id generator failed, falling back to sequence", zap.Error(err))
	}
	return int64(e.seq)
}

// dispatchLocked 非阻塞地放入发送队列，调用方需持有 mu，保证 batch 的发送顺序与 flush 顺序一致
func (e *Exporter) dispatchLocked(b *Batch) error {
	select {
	case e.pending <- b:
		return nil
	default:
		e.discard(b, "export queue full")
		return ErrQueueFull
	}
}

func (e *Exporter) discard(b *Batch, reason string) {
	e.dropped.Add(uint64(b.Len()))
	e.batchesDropped.Add(1)
	e.logger.Warn("Telemetry batch dropped",
		zap.String("reason", reason),
		zap.Int64("batch_id", b.ID),
		zap.Uint64("seq", b.Seq),
		zap.Int("events", b.Len()),
	)
}

func (e *Exporter) signalRearm() {
	select {
	case e.rearm <- struct{}{}:
	default:
	}
}

// run 定时 flush，任何一次 flush 之后重新计时
func (e *Exporter) run() {
	defer close(e.loopDone)

	timer := time.NewTimer(e.cfg.FlushInterval)
	defer timer.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-e.rearm:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(e.cfg.FlushInterval)
		case <-timer.C:
			if err := e.flush(FlushReasonTimer); err != nil && !errors.Is(err, ErrExporterClosed) {
				e.logger.Debug("Timer flush failed", zap.Error(err))
			}
			timer.Reset(e.cfg.FlushInterval)
		}
	}
}

// send 唯一的发送 goroutine，按入队顺序逐个发送
func (e *Exporter) send() {
	defer close(e.senderDone)

	for b := range e.pending {
		e.export(b)
	}
}

func (e *Exporter) export(b *Batch) {
	if e.sendCtx.Err() != nil {
		e.discard(b, "exporter terminated")
		return
	}

	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)

	ctx, cancel := context.WithTimeout(e.sendCtx, e.cfg.ExportTimeout)
	defer cancel()

	start := time.Now()
	if err := e.safeSend(ctx, b); err != nil {
		e.failed.Add(1)
		e.logger.Warn("Failed to export telemetry batch",
			zap.String("transport", e.transport.Name()),
			zap.Int64("batch_id", b.ID),
			zap.Uint64("seq", b.Seq),
			zap.String("reason", b.Reason.String()),
			zap.Int("events", b.Len()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	e.exported.Add(1)
	e.eventsExported.Add(uint64(b.Len()))
	e.logger.Debug("Telemetry batch exported",
		zap.String("transport", e.transport.Name()),
		zap.Int64("batch_id", b.ID),
		zap.Uint64("seq", b.Seq),
		zap.String("reason", b.Reason.String()),
		zap.Int("events", b.Len()),
		zap.Duration("duration", time.Since(start)),
	)
}

// safeSend transport 的 panic 也按发送失败处理
func (e *Exporter) safeSend(ctx context.Context, b *Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewTransportError(e.transport.Name(), fmt.Errorf("panic: %v", r))
		}
	}()

	return NewTransportError(e.transport.Name(), e.transport.Send(ctx, b, e.cfg.Resource))
}

// Shutdown 停止定时器，尝试最后一次 flush 并在限定时间内等待发送完成
// 重复调用直接返回第一次的结果，不会再次 flush
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.shutdownErr = e.shutdown(ctx)
	})
	return e.shutdownErr
}

func (e *Exporter) shutdown(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
	defer cancel()

	e.mu.Lock()
	e.state = StateDraining
	final := e.swapLocked(FlushReasonShutdown)
	e.mu.Unlock()

	close(e.stop)
	<-e.loopDone

	// 进入 Draining 后只有这里会写 pending
	if waitCtx.Err() != nil {
		e.discard(final, "shutdown deadline exceeded")
	} else {
		select {
		case e.pending <- final:
		case <-waitCtx.Done():
			e.discard(final, "shutdown deadline exceeded")
		}
	}
	close(e.pending)

	var err error
	select {
	case <-e.senderDone:
	case <-waitCtx.Done():
		e.cancelSends()
		err = fmt.Errorf("%w: %d batches still queued", ErrShutdownTimeout, len(e.pending))
	}
	e.cancelSends()

	e.mu.Lock()
	e.state = StateTerminated
	e.mu.Unlock()

	stats := e.Stats()
	e.logger.Info("Telemetry exporter terminated",
		zap.Uint64("ingested", stats.Ingested),
		zap.Uint64("dropped", stats.Dropped),
		zap.Uint64("batches_exported", stats.BatchesExported),
		zap.Uint64("batches_failed", stats.BatchesFailed),
		zap.Error(err),
	)

	return err
}

// State 当前状态，Flushing 表示有 batch 在队列中或正在发送
func (e *Exporter) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Exporter) stateLocked() State {
	switch {
	case e.state >= StateDraining:
		return e.state
	case e.inFlight.Load() > 0 || len(e.pending) > 0:
		return StateFlushing
	case len(e.open) > 0:
		return StateAccumulating
	default:
		return StateIdle
	}
}

// Stats 返回统计快照
func (e *Exporter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stats{
		State:           e.stateLocked(),
		Ingested:        e.ingested.Load(),
		Dropped:         e.dropped.Load(),
		OpenBatchSize:   len(e.open),
		QueuedBatches:   len(e.pending),
		BatchesExported: e.exported.Load(),
		BatchesFailed:   e.failed.Load(),
		BatchesDropped:  e.batchesDropped.Load(),
		EventsExported:  e.eventsExported.Load(),
		LastFlush:       e.lastFlush,
	}
}
