package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const exchangeType = "topic"

// AMQPPublisher publishes persistent JSON messages to a durable topic
// exchange, using the event type as routing key.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   zerolog.Logger
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(rabbitURL, exchange string, logger zerolog.Logger) (*AMQPPublisher, error) {
	if rabbitURL == "" {
		return nil, fmt.Errorf("rabbitmq url is empty")
	}
	if exchange == "" {
		return nil, fmt.Errorf("exchange name is empty")
	}

	logger.Info().Str("url", redactURL(rabbitURL)).Msg("connecting to RabbitMQ")

	conn, err := amqp.Dial(rabbitURL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info().Str("exchange", exchange).Msg("connected to RabbitMQ")
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	if p == nil || p.channel == nil {
		return nil
	}

	body, err := encodeEvent(e)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, e.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		MessageId:    e.ID.String(),
		Type:         e.Type,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	p.logger.Debug().Str("type", e.Type).Str("message_id", e.ID.String()).Msg("event published")
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("closing RabbitMQ channel")
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Ping reports whether the broker connection is open.
func (p *AMQPPublisher) Ping(_ context.Context) error {
	if p == nil || p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection closed")
	}
	return nil
}

func encodeEvent(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "amqp://***"
	}
	if u.User != nil {
		u.User = url.UserPassword("***", "***")
	}
	return u.String()
}
