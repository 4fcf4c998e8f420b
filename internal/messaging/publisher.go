package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/anonto42/shelflog/backend/internal/feed"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQPublisher sends aggregate notices to a topic exchange with
// routing key feed.aggregate.<outcome>.
type RabbitMQPublisher struct {
	ch       channel
	exchange string
}

func NewRabbitMQPublisher(ch channel, exchange string) *RabbitMQPublisher {
	return &RabbitMQPublisher{ch: ch, exchange: exchange}
}

func RoutingKey(outcome feed.Outcome) string {
	return "feed.aggregate." + string(outcome)
}

func (p *RabbitMQPublisher) PublishAggregate(ctx context.Context, n feed.AggregateNotice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	headers := make(amqp.Table)
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		headers["X-Request-ID"] = requestID
	}

	return p.ch.PublishWithContext(
		ctx,
		p.exchange,
		RoutingKey(n.Outcome),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    n.OccurredAt,
			Body:         body,
			Headers:      headers,
		},
	)
}

type ctxKey string

// RequestIDKey carries the request id into published headers.
const RequestIDKey ctxKey = "request_id"

// Connect dials RabbitMQ and declares the durable topic exchange.
func Connect(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Locale: "en_US",
		Dial:   amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return conn, ch, nil
}
