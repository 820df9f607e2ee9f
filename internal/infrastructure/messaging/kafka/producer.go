package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/CoverIQ-Intelligence/internal/config"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// ErrProducerClosed is returned after Close.
var ErrProducerClosed = errors.New(errors.ErrCodeMessageQueueError, "producer closed")

// writerInterface abstracts kafka.Writer for testing.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes event envelopes to the extraction topics.
type Producer struct {
	writer writerInterface
	logger logging.Logger
	closed atomic.Bool
}

// NewProducer builds a Kafka producer from the shared config.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) *Producer {
	retries := cfg.ProducerRetries
	if retries < 1 {
		retries = 3
	}
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 100
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  retries,
		BatchSize:    batchSize,
		BatchTimeout: time.Second,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer, logger: log}
}

// NewProducerWithWriter wraps an existing writer (for testing).
func NewProducerWithWriter(w writerInterface, log logging.Logger) *Producer {
	return &Producer{writer: w, logger: log}
}

// Publish sends one envelope to a topic, keyed so events for the same
// contract stay ordered within a partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, envelope *EventEnvelope) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event envelope")
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  envelope.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(envelope.EventType)},
			{Key: "schema_version", Value: []byte(envelope.SchemaVersion)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to publish event")
	}

	p.logger.Debug("Published event",
		logging.String("topic", topic),
		logging.String("event_type", envelope.EventType),
		logging.String("event_id", envelope.EventID),
	)
	return nil
}

// PublishExtractionRequested publishes an extraction request event.
func (p *Producer) PublishExtractionRequested(ctx context.Context, payload ExtractionRequestedPayload) error {
	envelope, err := NewEventEnvelope(TopicExtractionRequested, "apiserver", payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, TopicExtractionRequested, payload.ContractID, envelope)
}

// PublishExtractionCompleted publishes an extraction completion event.
func (p *Producer) PublishExtractionCompleted(ctx context.Context, payload ExtractionCompletedPayload) error {
	envelope, err := NewEventEnvelope(TopicExtractionCompleted, "worker", payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, TopicExtractionCompleted, payload.ContractID, envelope)
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
