package transport

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"otelapi/pkg/telemetry"
)

// Publisher 由 storage/mq.Client 实现
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey, contentType string, body []byte, headers amqp.Table) error
}

// AMQPTransport 把 JSON 编码的 batch 发布到 topic exchange
type AMQPTransport struct {
	pub        Publisher
	exchange   string
	routingKey string
}

func NewAMQP(pub Publisher, exchange, routingKey string) (*AMQPTransport, error) {
	if pub == nil {
		return nil, fmt.Errorf("amqp transport requires a publisher")
	}
	if exchange == "" {
		return nil, fmt.Errorf("amqp transport requires an exchange")
	}
	return &AMQPTransport{pub: pub, exchange: exchange, routingKey: routingKey}, nil
}

func (t *AMQPTransport) Name() string { return "amqp" }

func (t *AMQPTransport) Send(ctx context.Context, b *telemetry.Batch, res telemetry.ResourceDescriptor) error {
	if b.Len() == 0 {
		return nil
	}

	body, err := EncodeBatch(b, res)
	if err != nil {
		return err
	}

	headers := amqp.Table{
		"batch_id": b.ID,
		"seq":      int64(b.Seq),
		"reason":   b.Reason.String(),
		"service":  res.ServiceName,
	}
	return t.pub.Publish(ctx, t.exchange, t.routingKey, ContentType, body, headers)
}

// Close 连接由 storage 层负责关闭
func (t *AMQPTransport) Close(context.Context) error { return nil }
