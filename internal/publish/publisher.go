// Package publish announces completed pipeline runs on the event bus.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"example.com/endurance/internal/events"
)

// MessageWriter is the subset of KafkaProducer the Publisher needs.
type MessageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// Option configures optional behaviour for the Publisher.
type Option func(*Publisher)

// WithLogger overrides the logger used to report deliveries.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// Publisher writes JSON run events to a single topic. The event type travels in the
// event_type header and the run ID is the message key.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher constructs a Publisher for topic.
func NewPublisher(writer MessageWriter, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		writer: writer,
		topic:  topic,
		logger: slog.Default().With("component", "publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishIngestion announces a completed ingestion run.
func (p *Publisher) PublishIngestion(ctx context.Context, ev events.IngestionCompleted) error {
	return p.publish(ctx, events.TypeIngestionCompleted, ev.RunID, ev)
}

// PublishRecalculation announces a completed recalculation.
func (p *Publisher) PublishRecalculation(ctx context.Context, ev events.RecalculationCompleted) error {
	return p.publish(ctx, events.TypeRecalculationCompleted, ev.RunID, ev)
}

func (p *Publisher) publish(ctx context.Context, eventType, runID string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(runID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "content_type", Value: []byte("application/json")},
			{Key: "payload_size", Value: []byte(strconv.Itoa(len(value)))},
		},
	}
	if err := p.writer.WriteMessages(ctx, p.topic, msg); err != nil {
		recordPublishFailure(eventType)
		p.logger.Error("publish event", "event_type", eventType, "run_id", runID, "topic", p.topic, "error", err)
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	recordPublished(eventType)
	p.logger.Info("published event", "event_type", eventType, "run_id", runID, "topic", p.topic)
	return nil
}

// Noop discards events. It stands in when no brokers are configured.
type Noop struct{}

// PublishIngestion implements the pipeline publisher contract.
func (Noop) PublishIngestion(context.Context, events.IngestionCompleted) error { return nil }

// PublishRecalculation implements the pipeline publisher contract.
func (Noop) PublishRecalculation(context.Context, events.RecalculationCompleted) error { return nil }
