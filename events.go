package main

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/matrimonyai/backend/matching"
)

const eventMatchSuggested = "match.suggested"

type EventPayload struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// Emitter publishes match events to a fanout exchange.
type Emitter struct {
	connection *amqp.Connection
	exchange   string
}

func NewEmitter(conn *amqp.Connection, exchange string) (*Emitter, error) {
	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	err = channel.ExchangeDeclare(
		exchange,
		"fanout",
		true,  // Durable
		false, // Auto-deleted
		false, // Internal
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	logger.Info("declared exchange", zap.String("exchange", exchange))

	return &Emitter{connection: conn, exchange: exchange}, nil
}

func (e *Emitter) publish(ctx context.Context, routingKey string, payload EventPayload) error {
	channel, err := e.connection.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	err = channel.PublishWithContext(ctx,
		e.exchange,
		routingKey,
		false, // Mandatory
		false, // Immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logger.Debug("event published",
		zap.String("exchange", e.exchange),
		zap.String("event_type", payload.EventType),
	)
	return nil
}

// PublishMatchSuggested implements matching.Publisher.
func (e *Emitter) PublishMatchSuggested(ctx context.Context, m matching.MatchRecord) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}
	return e.publish(ctx, eventMatchSuggested, EventPayload{
		EventType: eventMatchSuggested,
		Data:      data,
	})
}
