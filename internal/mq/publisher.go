package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/septivank/weather-readings-api/internal/db"
	"go.uber.org/zap"
)

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes reading events to RabbitMQ. It is shared by every
// request goroutine; publishes on the channel are serialized.
type Publisher struct {
	mu         sync.Mutex
	channel    publishChannel
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher and declares its exchange
func NewPublisher(conn *Connection, exchange, routingKey string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return newPublisher(ch, exchange, routingKey, logger), nil
}

func newPublisher(ch publishChannel, exchange, routingKey string, logger *zap.Logger) *Publisher {
	return &Publisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}
}

// ReadingCreatedEvent is published once per stored reading
type ReadingCreatedEvent struct {
	EventID    string     `json:"event_id"`
	ReadingID  string     `json:"reading_id"`
	DeviceName string     `json:"device_name"`
	Time       time.Time  `json:"time"`
	Reading    db.Reading `json:"reading"`
}

// PublishReadingCreated publishes a reading.created event
func (p *Publisher) PublishReadingCreated(ctx context.Context, eventID string, reading db.Reading) error {
	event := ReadingCreatedEvent{
		EventID:    eventID,
		ReadingID:  reading.ID,
		DeviceName: reading.DeviceName,
		Time:       reading.Time,
		Reading:    reading,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    eventID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	p.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published reading event",
		zap.String("routing_key", p.routingKey),
		zap.String("reading_id", reading.ID),
		zap.String("device_name", reading.DeviceName),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
