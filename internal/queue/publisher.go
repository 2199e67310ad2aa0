package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/insurance-quoting/internal/config"
)

// Publisher sends events to a durable queue. Each publish opens its own
// connection; the volume of application events does not warrant pooling.
type Publisher struct {
	url    string
	queue  string
	logger *zap.Logger
}

func NewPublisher(cfg config.QueueConfig, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{url: cfg.URL, queue: cfg.Queue, logger: logger}
}

// PublishApplicationCreated publishes ev as a persistent JSON message.
// Errors are logged and returned so the caller can choose to ignore them.
func (p *Publisher) PublishApplicationCreated(ctx context.Context, ev ApplicationCreatedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("rabbitmq: marshal event failed", zap.Error(err))
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declareQueue(ch, p.queue); err != nil {
		p.logger.Warn("rabbitmq: queue declare failed", zap.String("queue", p.queue), zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange; routing key = queue name
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.logger.Warn("rabbitmq: publish failed", zap.Error(err))
		return err
	}
	return nil
}

// declareQueue is idempotent. Durable so messages survive broker restarts.
func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(name, true, false, false, false, nil)
	return err
}
