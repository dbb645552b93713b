// Package kafka streams audit events to a Kafka topic for downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"usersapi/internal/audit"
	"usersapi/internal/platform/kafka/producer"
)

// Publisher is the subset of the producer used by the sink.
type Publisher interface {
	ProduceAsync(msg *producer.Message, onErr func(error)) error
}

// Sink enqueues each event on a topic without waiting for the broker ack.
// Delivery failures after enqueue are logged.
type Sink struct {
	publisher Publisher
	topic     string
	logger    *slog.Logger
}

func NewSink(publisher Publisher, topic string, logger *slog.Logger) *Sink {
	return &Sink{publisher: publisher, topic: topic, logger: logger}
}

// Append serializes the event as JSON keyed by actor email, so a single
// actor's events stay ordered within a partition.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	msg := &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.ActorEmail),
		Value: payload,
		Headers: map[string]string{
			"operation":  string(event.Operation),
			"request_id": event.RequestID,
		},
	}

	err = s.publisher.ProduceAsync(msg, func(err error) {
		if s.logger != nil {
			s.logger.Error("audit event delivery failed",
				"topic", s.topic,
				"operation", string(event.Operation),
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("enqueue audit event: %w", err)
	}
	return nil
}
