package notifications

import (
	"context"
	"fmt"

	"tourbook/pkg/kafka"
	"tourbook/pkg/logger"
)

const (
	eventSource   = "tourbook"
	schemaVersion = "1"
)

// KafkaPublisher writes events keyed by booking id so each booking's events
// stay ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := kafka.NewMessage().
		WithKey(e.BookingID).
		WithValue(e).
		WithEventID(e.ID).
		WithEventType(string(e.Type)).
		WithSource(eventSource).
		WithSchemaVersion(schemaVersion).
		WithTimestamp(e.At).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build event message: %w", err)
	}
	return p.producer.Publish(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher only logs events. It is used when Kafka is disabled.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Info("Booking event",
		"event_id", e.ID,
		"event_type", e.Type,
		"booking_id", e.BookingID,
		"status", e.Status,
		"actor", e.Actor,
	)
	return nil
}
