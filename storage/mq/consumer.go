package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, body []byte) error

type ConsumeOptions struct {
	Exchange      string
	RoutingKey    string
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 声明队列并绑定到 exchange，阻塞消费直到 ctx 取消或连接断开
func (c *Client) Consume(ctx context.Context, opts ConsumeOptions) error {
	if c.conn == nil || c.conn.IsClosed() {
		return errConnectionClosed
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	q, err := ch.QueueDeclare(opts.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if opts.Exchange != "" {
		if err := ch.QueueBind(q.Name, opts.RoutingKey, opts.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", q.Name, err)
		}
	}

	msgs, err := ch.Consume(
		q.Name,
		opts.ConsumerTag,
		false, // auto-ack = false
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Started consuming messages",
		zap.String("queue", q.Name),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel for %s closed", q.Name)
			}
			handle(ctx, c.logger, q.Name, opts.Handler, msg)
		}
	}
}

// handle 处理失败的消息不重新入队，避免毒消息循环
func handle(ctx context.Context, logger *zap.Logger, queue string, handler MessageHandler, msg amqp.Delivery) {
	if err := handler(ctx, msg.Body); err != nil {
		logger.Error("Failed to process message",
			zap.String("queue", queue),
			zap.Error(err),
		)
		_ = msg.Nack(false, false)
		return
	}

	_ = msg.Ack(false)
}
