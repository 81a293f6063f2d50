package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"evaluation-service/internal/domain"
	"github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange receives every finalized attempt.
	DefaultExchange = "evaluation.events"
	// RoutingKeyPassed and RoutingKeyFailed let consumers bind to one outcome.
	RoutingKeyPassed = "evaluation.result.passed"
	RoutingKeyFailed = "evaluation.result.failed"

	publishTimeout = 5 * time.Second
)

// Channel is the part of *amqp091.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// ResultPublisher publishes result records to a topic exchange.
type ResultPublisher struct {
	conn     *amqp091.Connection
	channel  Channel
	exchange string
	now      func() time.Time
}

// Dial connects to RabbitMQ and declares a durable topic exchange.
func Dial(uri, exchange string) (*ResultPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := NewResultPublisher(channel, exchange)
	p.conn = conn
	return p, nil
}

// NewResultPublisher wraps an already opened channel.
func NewResultPublisher(channel Channel, exchange string) *ResultPublisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &ResultPublisher{channel: channel, exchange: exchange, now: time.Now}
}

func (p *ResultPublisher) RecordResult(ctx context.Context, record domain.ResultRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchange,         // exchange
		RoutingKey(record), // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    fmt.Sprintf("%s:%d", record.SessionID, record.Result.Attempt),
			Timestamp:    p.now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

// RoutingKey picks the outcome-specific key of record.
func RoutingKey(record domain.ResultRecord) string {
	if record.Result.Passed {
		return RoutingKeyPassed
	}
	return RoutingKeyFailed
}

func (p *ResultPublisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
