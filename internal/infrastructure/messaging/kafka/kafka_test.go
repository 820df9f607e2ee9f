package kafka

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

func TestEventEnvelopeRoundTrip(t *testing.T) {
	payload := ExtractionRequestedPayload{
		ExtractionID: "ext-1",
		ContractID:   "con-1",
		Provider:     "openai",
		ModelName:    "gpt-4o",
		RequestedAt:  time.Now().UTC(),
	}
	envelope, err := NewEventEnvelope(TopicExtractionRequested, "apiserver", payload)
	require.NoError(t, err)
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, "v1", envelope.SchemaVersion)

	raw, err := json.Marshal(envelope)
	require.NoError(t, err)

	parsed, err := ParseEnvelope(raw)
	require.NoError(t, err)

	var got ExtractionRequestedPayload
	require.NoError(t, parsed.DecodePayload(&got))
	assert.Equal(t, payload.ExtractionID, got.ExtractionID)
	assert.Equal(t, payload.ModelName, got.ModelName)
}

func TestParseEnvelopeRejectsGarbage(t *testing.T) {
	_, err := ParseEnvelope(nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	_, err = ParseEnvelope([]byte("not json"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerPublishExtractionRequested(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, logging.NewNopLogger())

	err := p.PublishExtractionRequested(context.Background(), ExtractionRequestedPayload{
		ExtractionID: "ext-1",
		ContractID:   "con-1",
		Provider:     "gemini",
		ModelName:    "gemini-2.0-flash",
	})
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, TopicExtractionRequested, msg.Topic)
	assert.Equal(t, "con-1", string(msg.Key))

	envelope, err := ParseEnvelope(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, TopicExtractionRequested, envelope.EventType)
}

func TestProducerClosedRejectsPublish(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, logging.NewNopLogger())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.PublishExtractionCompleted(context.Background(), ExtractionCompletedPayload{ContractID: "c"})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

type scriptedReader struct {
	mu        sync.Mutex
	messages  []kafkago.Message
	committed []kafkago.Message
	closed    bool
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		// Block until cancellation once the script is drained.
		r.mu.Unlock()
		<-ctx.Done()
		r.mu.Lock()
		return kafkago.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *scriptedReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestConsumerDispatchesAndCommits(t *testing.T) {
	envelope, err := NewEventEnvelope(TopicExtractionRequested, "apiserver", ExtractionRequestedPayload{
		ExtractionID: "ext-9",
		ContractID:   "con-9",
	})
	require.NoError(t, err)
	value, err := json.Marshal(envelope)
	require.NoError(t, err)

	reader := &scriptedReader{messages: []kafkago.Message{{Topic: TopicExtractionRequested, Value: value}}}
	consumer := NewConsumerWithReader(reader, nil, 1, time.Millisecond, logging.NewNopLogger())

	handled := make(chan string, 1)
	err = consumer.Start(context.Background(), func(_ context.Context, e *EventEnvelope) error {
		var p ExtractionRequestedPayload
		if err := e.DecodePayload(&p); err != nil {
			return err
		}
		handled <- p.ExtractionID
		return nil
	})
	require.NoError(t, err)

	select {
	case id := <-handled:
		assert.Equal(t, "ext-9", id)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}

	require.NoError(t, consumer.Stop())
	assert.True(t, reader.closed)
	assert.Len(t, reader.committed, 1)
}

// requestMessage builds a fetched broker message carrying an extraction
// request envelope.
func requestMessage(t *testing.T, extractionID string, offset int64) kafkago.Message {
	t.Helper()
	envelope, err := NewEventEnvelope(TopicExtractionRequested, "apiserver", ExtractionRequestedPayload{
		ExtractionID: extractionID,
		ContractID:   "con-" + extractionID,
	})
	require.NoError(t, err)
	value, err := json.Marshal(envelope)
	require.NoError(t, err)
	return kafkago.Message{Topic: TopicExtractionRequested, Offset: offset, Value: value}
}

func TestConsumerRetriesFailedEventInPlace(t *testing.T) {
	reader := &scriptedReader{messages: []kafkago.Message{
		requestMessage(t, "ext-bad", 10),
		requestMessage(t, "ext-ok", 11),
	}}
	deadLetters := &fakeWriter{}
	consumer := NewConsumerWithReader(reader, NewProducerWithWriter(deadLetters, logging.NewNopLogger()),
		2, time.Millisecond, logging.NewNopLogger())

	var mu sync.Mutex
	var handled []string
	err := consumer.Start(context.Background(), func(_ context.Context, e *EventEnvelope) error {
		var p ExtractionRequestedPayload
		if err := e.DecodePayload(&p); err != nil {
			return err
		}
		mu.Lock()
		handled = append(handled, p.ExtractionID)
		mu.Unlock()
		if p.ExtractionID == "ext-bad" {
			return errors.New(errors.ErrCodeExternalService, "model upstream down")
		}
		return nil
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 2
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, consumer.Stop())

	// The failing event is attempted once plus maxRetries times, all before
	// the next message is fetched.
	assert.Equal(t, []string{"ext-bad", "ext-bad", "ext-bad", "ext-ok"}, handled)

	// Offsets commit in order; the failed message is committed only after it
	// was dead-lettered, never skipped by a later commit.
	require.Len(t, reader.committed, 2)
	assert.EqualValues(t, 10, reader.committed[0].Offset)
	assert.EqualValues(t, 11, reader.committed[1].Offset)

	require.Len(t, deadLetters.messages, 1)
	assert.Equal(t, TopicDeadLetter, deadLetters.messages[0].Topic)
	dead, err := ParseEnvelope(deadLetters.messages[0].Value)
	require.NoError(t, err)
	var p ExtractionRequestedPayload
	require.NoError(t, dead.DecodePayload(&p))
	assert.Equal(t, "ext-bad", p.ExtractionID)
}

func TestConsumerRecoversWithinRetryBudget(t *testing.T) {
	reader := &scriptedReader{messages: []kafkago.Message{requestMessage(t, "ext-flaky", 7)}}
	deadLetters := &fakeWriter{}
	consumer := NewConsumerWithReader(reader, NewProducerWithWriter(deadLetters, logging.NewNopLogger()),
		3, time.Millisecond, logging.NewNopLogger())

	var attempts int32
	err := consumer.Start(context.Background(), func(context.Context, *EventEnvelope) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return errors.New(errors.ErrCodeExternalService, "transient")
		}
		return nil
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 1
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, consumer.Stop())

	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
	assert.Empty(t, deadLetters.messages, "recovered event must not be dead-lettered")
}

func TestConsumerStartTwice(t *testing.T) {
	reader := &scriptedReader{}
	consumer := NewConsumerWithReader(reader, nil, 0, time.Millisecond, logging.NewNopLogger())

	require.NoError(t, consumer.Start(context.Background(), func(context.Context, *EventEnvelope) error { return nil }))
	assert.ErrorIs(t, consumer.Start(context.Background(), func(context.Context, *EventEnvelope) error { return nil }), ErrAlreadyRunning)
	require.NoError(t, consumer.Stop())
}
