// Package events publishes booking lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/safarmate/transit-backend/internal/config"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/segmentio/kafka-go"
)

// Publisher emits booking events
type Publisher interface {
	PublishBooking(ctx context.Context, event models.BookingEvent) error
	Close() error
}

// KafkaPublisher writes booking events keyed by booking id so each booking's
// events land on one partition in order
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewPublisher returns a Kafka publisher, or a no-op one when no brokers are configured
func NewPublisher(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(cfg)
}

// NewKafkaPublisher creates a publisher for cfg.BookingTopic
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.BookingTopic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// PublishBooking writes one event
func (p *KafkaPublisher) PublishBooking(ctx context.Context, event models.BookingEvent) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write booking event: %w", err)
	}
	return nil
}

// Topic returns the destination topic
func (p *KafkaPublisher) Topic() string {
	return p.writer.Topic
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newMessage(event models.BookingEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode booking event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.BookingID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) PublishBooking(ctx context.Context, event models.BookingEvent) error { return nil }
func (NoopPublisher) Close() error { return nil }
