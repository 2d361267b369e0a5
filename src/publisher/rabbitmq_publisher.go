// Package publisher sends finished run summaries to a RabbitMQ exchange.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitmqPublisher struct {
	conn       *amqp.Connection
	Channel    Channel
	Exchange   string
	RoutingKey string
}

func NewPublisher(ch Channel, exchange, routingKey string) *RabbitmqPublisher {
	return &RabbitmqPublisher{
		Channel:    ch,
		Exchange:   exchange,
		RoutingKey: routingKey,
	}
}

// Dial connects to the broker and declares a durable topic exchange.
func Dial(url, exchange, routingKey string) (*RabbitmqPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := NewPublisher(ch, exchange, routingKey)
	p.conn = conn
	return p, nil
}

// Publish serializes v as JSON and publishes it as a persistent message.
func (rp *RabbitmqPublisher) Publish(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return rp.Channel.PublishWithContext(ctx,
		rp.Exchange,
		rp.RoutingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
}

func (rp *RabbitmqPublisher) Close() error {
	err := rp.Channel.Close()
	if rp.conn != nil {
		if cerr := rp.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
