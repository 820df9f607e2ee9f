package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/CoverIQ-Intelligence/internal/config"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

var (
	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
)

const (
	defaultRetryBackoff = time.Second
	maxRetryBackoff     = 30 * time.Second
)

// EnvelopeHandler processes one decoded event.  A non-nil error makes the
// consumer retry the event in place with exponential backoff; once maxRetries
// attempts are exhausted the message is dead-lettered and committed.
type EnvelopeHandler func(ctx context.Context, envelope *EventEnvelope) error

// readerInterface abstracts kafka.Reader for testing.
type readerInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads extraction events in a consumer group and dispatches them to
// a handler.
type Consumer struct {
	reader       readerInterface
	producer     *Producer
	logger       logging.Logger
	maxRetries   int
	retryBackoff time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewConsumer builds a group consumer over the extraction request topic.
func NewConsumer(cfg config.KafkaConfig, workerCfg config.WorkerConfig, producer *Producer, log logging.Logger) *Consumer {
	startOffset := kafka.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}
	commitInterval := workerCfg.CommitInterval
	if commitInterval == 0 {
		commitInterval = time.Second
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          TopicExtractionRequested,
		MinBytes:       1,
		MaxBytes:       10 * 1024 * 1024,
		MaxWait:        time.Second,
		CommitInterval: commitInterval,
		StartOffset:    startOffset,
	})
	return &Consumer{
		reader:       reader,
		producer:     producer,
		logger:       log,
		maxRetries:   workerCfg.MaxRetries,
		retryBackoff: workerCfg.RetryBackoff,
	}
}

// NewConsumerWithReader wraps an existing reader (for testing).
func NewConsumerWithReader(r readerInterface, producer *Producer, maxRetries int, retryBackoff time.Duration, log logging.Logger) *Consumer {
	return &Consumer{reader: r, producer: producer, maxRetries: maxRetries, retryBackoff: retryBackoff, logger: log}
}

// Start launches the consume loop.  It returns immediately; the loop runs
// until Stop or ctx cancellation.
func (c *Consumer) Start(ctx context.Context, handler EnvelopeHandler) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(runCtx, handler)
	}()
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, handler EnvelopeHandler) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch message", logging.Err(err))
			continue
		}

		envelope, err := ParseEnvelope(msg.Value)
		if err != nil {
			c.logger.Error("Discarding undecodable message",
				logging.String("topic", msg.Topic), logging.Err(err))
			c.deadLetter(ctx, msg)
			c.commit(ctx, msg)
			continue
		}

		if err := c.handleWithRetry(ctx, envelope, handler); err != nil {
			if ctx.Err() != nil {
				// Shutting down mid-retry: leave the offset uncommitted so
				// the group redelivers the message on restart.
				return
			}
			c.logger.Error("Event exhausted retries, dead-lettering",
				logging.String("event_id", envelope.EventID), logging.Err(err))
			c.deadLetter(ctx, msg)
		}
		c.commit(ctx, msg)
	}
}

// handleWithRetry runs the handler and, on failure, retries it in place with
// exponential backoff.  The caller commits only after this returns, so the
// group offset never advances past a message that is still being retried.
func (c *Consumer) handleWithRetry(ctx context.Context, envelope *EventEnvelope, handler EnvelopeHandler) error {
	err := handler(ctx, envelope)
	if err == nil {
		return nil
	}

	backoff := c.retryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		c.logger.Warn("Event handling failed, retrying",
			logging.String("event_id", envelope.EventID),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", backoff),
			logging.Err(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if err = handler(ctx, envelope); err == nil {
			return nil
		}

		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
	return err
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message) {
	if c.producer == nil {
		return
	}
	dead := kafka.Message{Topic: TopicDeadLetter, Key: msg.Key, Value: msg.Value}
	if err := c.producer.writer.WriteMessages(ctx, dead); err != nil {
		c.logger.Error("Failed to publish dead letter", logging.Err(err))
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit offset", logging.Err(err))
	}
}

// Stop cancels the consume loop and closes the reader.
func (c *Consumer) Stop() error {
	if !c.running.Swap(false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}
