// Package kafka carries the extraction pipeline's events between the API
// server and the worker.
package kafka

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/CoverIQ-Intelligence/internal/config"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// Topic constants.
const (
	TopicExtractionRequested = "contract.extraction.requested"
	TopicExtractionCompleted = "contract.extraction.completed"
	TopicDeadLetter          = "contract.extraction.dead_letter"
)

// EventEnvelope standardizes event messages on the wire.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// ExtractionRequestedPayload asks the worker to run one extraction job.
type ExtractionRequestedPayload struct {
	ExtractionID string    `json:"extraction_id"`
	ContractID   string    `json:"contract_id"`
	Provider     string    `json:"model_provider"`
	ModelName    string    `json:"model_name"`
	RequestedAt  time.Time `json:"requested_at"`
}

// ExtractionCompletedPayload announces a finished job, successful or not.
type ExtractionCompletedPayload struct {
	ExtractionID string    `json:"extraction_id"`
	ContractID   string    `json:"contract_id"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// NewEventEnvelope wraps a payload in a versioned envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "event has no payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode event payload")
	}
	return nil
}

// ParseEnvelope decodes a raw Kafka message value into an envelope.
func ParseEnvelope(value []byte) (*EventEnvelope, error) {
	if len(value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var e EventEnvelope
	if err := json.Unmarshal(value, &e); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode event envelope")
	}
	return &e, nil
}

// TopicManager creates the pipeline topics at startup when auto-creation is
// enabled.
type TopicManager struct {
	cfg    config.KafkaConfig
	logger logging.Logger
}

// NewTopicManager builds a TopicManager.
func NewTopicManager(cfg config.KafkaConfig, log logging.Logger) *TopicManager {
	return &TopicManager{cfg: cfg, logger: log}
}

// EnsureTopics creates the pipeline topics if they do not exist.
func (m *TopicManager) EnsureTopics(ctx context.Context) error {
	if !m.cfg.AutoCreateTopics {
		return nil
	}

	conn, err := kafka.DialContext(ctx, "tcp", m.cfg.Brokers[0])
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to dial kafka broker")
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to find kafka controller")
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to dial kafka controller")
	}
	defer controllerConn.Close()

	partitions := m.cfg.NumPartitions
	if partitions < 1 {
		partitions = 3
	}
	topics := []kafka.TopicConfig{
		{Topic: TopicExtractionRequested, NumPartitions: partitions, ReplicationFactor: 1},
		{Topic: TopicExtractionCompleted, NumPartitions: partitions, ReplicationFactor: 1},
		{Topic: TopicDeadLetter, NumPartitions: 1, ReplicationFactor: 1},
	}
	if err := controllerConn.CreateTopics(topics...); err != nil {
		return errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to create kafka topics")
	}

	m.logger.Info("Kafka topics ensured",
		logging.String("requested", TopicExtractionRequested),
		logging.String("completed", TopicExtractionCompleted),
		logging.Int("partitions", partitions),
	)
	return nil
}
