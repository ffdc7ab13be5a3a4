package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher queues events on RabbitMQ instead of delivering them inline.
// A separate notifier worker consumes the queue and performs the webhook
// delivery, so a slow sink never backs up into the relay process.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// DeclareTopology declares the main queue plus its retry and dead-letter
// companions. Publisher and consumer both call it so either side can start
// first.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	mainQ := queue
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return err
	}

	// Retry queue: message TTL dead-letters back to the main queue.
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": mainQ,
	}); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on nack(requeue=false).
	if _, err := ch.QueueDeclare(mainQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	}); err != nil {
		return err
	}
	return nil
}

// NewPublisher dials the broker and declares the queue topology.
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Send implements Notifier by publishing a persistent JSON event.
func (p *Publisher) Send(ctx context.Context, title, message string) error {
	body, err := json.Marshal(Event{Title: title, Message: message})
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
