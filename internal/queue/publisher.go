package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/lottery-storefront/internal/logging"
)

// Publisher sends one event of the given type.
type Publisher interface {
	Publish(ctx context.Context, eventType string, event any) error
}

// AMQPPublisher publishes ticket events to a durable RabbitMQ queue.  A
// connection is dialed for every publish.
type AMQPPublisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
}

// NewAMQPPublisher returns a publisher for the given broker URL and queue.
func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, dialTimeout: 2 * time.Second}
}

// Publish marshals event and publishes it to the configured queue.  The
// function attempts to be robust and to never panic; any error is logged
// and returned so the caller can choose to ignore it.  Messages are marked
// as persistent.
func (p *AMQPPublisher) Publish(ctx context.Context, eventType string, event any) error {
	logger := logging.FromContext(ctx).WithField("event_type", eventType)

	// Bounded dial so a dead broker does not stall the publishing goroutine.
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
	if err != nil {
		logger.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		logger.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		logger.WithError(err).Warn("rabbitmq: marshal event failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent, // store on disk
		Timestamp:     time.Now().UTC(),
		Type:          eventType,
		CorrelationId: logging.CorrelationIDFromContext(ctx),
		Body:          body,
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		logger.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}

// NopPublisher discards every event.  It is used when the broker is
// disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
