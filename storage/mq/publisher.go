package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errConnectionClosed = errors.New("rabbitmq connection is closed")

// getPublisherChannel 复用发布 channel，channel 被服务端关闭后在下一次发布时重建
func (c *Client) getPublisherChannel() (*amqp.Channel, error) {
	// 先读锁检查
	c.pubMutex.RLock()
	if c.publisherCh != nil && !c.publisherCh.IsClosed() {
		ch := c.publisherCh
		c.pubMutex.RUnlock()
		return ch, nil
	}
	c.pubMutex.RUnlock()

	c.pubMutex.Lock()
	defer c.pubMutex.Unlock()

	if c.publisherCh != nil && !c.publisherCh.IsClosed() {
		return c.publisherCh, nil
	}

	if c.conn == nil || c.conn.IsClosed() {
		return nil, errConnectionClosed
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	c.publisherCh = ch

	closeChan := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		<-closeChan

		c.pubMutex.Lock()
		if c.publisherCh == ch {
			c.publisherCh = nil
		}
		c.pubMutex.Unlock()

		c.logger.Warn("Publisher channel closed, will recreate on next publish")
	}()

	c.logger.Info("Publisher channel created")

	return ch, nil
}

// Publish 发送一条消息，body 由调用方编码
func (c *Client) Publish(ctx context.Context, exchange, routingKey, contentType string, body []byte, headers amqp.Table) error {
	ch, err := c.getPublisherChannel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  contentType,
			Body:         body,
			Headers:      headers,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message to %s/%s: %w", exchange, routingKey, err)
	}

	c.logger.Debug("Message published",
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey),
		zap.Int("bytes", len(body)),
	)
	return nil
}
