package telemetry

import (
	"errors"
	"fmt"
)

var (
	// ErrExporterClosed exporter 已进入 Draining/Terminated，不再接受 flush
	ErrExporterClosed = errors.New("telemetry exporter is closed")
	// ErrQueueFull 发送队列已满，batch 被丢弃
	ErrQueueFull = errors.New("telemetry export queue is full")
	// ErrShutdownTimeout 最后一次 flush 没有在限定时间内完成，剩余事件被丢弃
	ErrShutdownTimeout = errors.New("telemetry exporter shutdown timed out")
)

// TransportError 发送失败（网络、鉴权、序列化），batch 会被直接丢弃
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError 包装 transport 返回的错误，已经是 TransportError 的直接返回
func NewTransportError(transport string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Transport: transport, Err: err}
}
