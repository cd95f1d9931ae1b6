package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"carequery/internal/model"
)

// ExchangeLogPublisher pushes request/response log envelopes onto the
// persist queue. Persistence is off the request path: the worker on the
// other side owns the database writes.
type ExchangeLogPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewExchangeLogPublisher(conn *amqp.Connection, queueName string) *ExchangeLogPublisher {
	return &ExchangeLogPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *ExchangeLogPublisher) Publish(ctx context.Context, entry model.ExchangeLog) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal exchange log failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish exchange log failed: %w", err)
	}
	return nil
}
