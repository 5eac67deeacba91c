package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Client 持有一条 RabbitMQ 连接，发布共用一个可自动重建的 channel
type Client struct {
	conn   *amqp.Connection
	logger *zap.Logger

	pubMutex    sync.RWMutex // 读写锁，读多写少
	publisherCh *amqp.Channel
}

// Dial 建立连接
func Dial(url string, logger *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{conn: conn, logger: logger.With(zap.String("component", "rabbitmq"))}, nil
}

// Connection 底层连接，消费者自行打开 channel
func (c *Client) Connection() *amqp.Connection {
	return c.conn
}

// DeclareTopicExchange 声明持久化的 topic exchange，重复声明是幂等的
func (c *Client) DeclareTopicExchange(name string) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return nil
	}

	c.pubMutex.Lock()
	if c.publisherCh != nil {
		_ = c.publisherCh.Close()
		c.publisherCh = nil
	}
	c.pubMutex.Unlock()

	if c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}
