package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EventPublisher publishes pipeline lifecycle events
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, event RunCompletedEvent) error
	PublishArchiveCompleted(ctx context.Context, event ArchiveCompletedEvent) error
}

// PublisherConfig holds publisher configuration
type PublisherConfig struct {
	Exchange          string
	RunRoutingKey     string
	ArchiveRoutingKey string
}

// Publisher handles event publishing to RabbitMQ
type Publisher struct {
	channel *amqp.Channel
	cfg     PublisherConfig
	logger  *zap.Logger
}

// NewPublisher opens a channel on conn and declares the events exchange
func NewPublisher(conn *Connection, cfg PublisherConfig, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
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

	return &Publisher{
		channel: ch,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// PublishRunCompleted publishes a run summary
func (p *Publisher) PublishRunCompleted(ctx context.Context, event RunCompletedEvent) error {
	return p.publish(ctx, p.cfg.RunRoutingKey, event.RunID, event)
}

// PublishArchiveCompleted publishes an archive summary
func (p *Publisher) PublishArchiveCompleted(ctx context.Context, event ArchiveCompletedEvent) error {
	return p.publish(ctx, p.cfg.ArchiveRoutingKey, event.RunID, event)
}

func (p *Publisher) publish(ctx context.Context, routingKey, runID string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.cfg.Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: runID,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published event",
		zap.String("routing_key", routingKey),
		zap.String("run_id", runID),
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

// NopPublisher drops every event. It stands in when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishRunCompleted(context.Context, RunCompletedEvent) error { return nil }

func (NopPublisher) PublishArchiveCompleted(context.Context, ArchiveCompletedEvent) error {
	return nil
}
