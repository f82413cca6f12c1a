package kafka

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rasert/distributed-tracing-poc/pkg/models"

	kafka "github.com/segmentio/kafka-go"
)

// MockProducer is a mock implementation of ProducerClient for testing
type MockProducer struct {
	mu                sync.RWMutex
	PublishedMessages []PublishedMessage
	PublishFunc       func(ctx context.Context, topic string, msg *models.Message) error
	CloseFunc         func() error
	FailCount         int
	failureCounter    int
}

type PublishedMessage struct {
	Topic   string
	ID      string
	Value   []byte
	Headers map[string]string
}

func NewMockProducer() *MockProducer {
	return &MockProducer{
		PublishedMessages: make([]PublishedMessage, 0),
	}
}

func (m *MockProducer) Publish(ctx context.Context, topic string, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}

	if m.FailCount > 0 {
		m.failureCounter++
		if m.failureCounter <= m.FailCount {
			return fmt.Errorf("simulated publish failure %d", m.failureCounter)
		}
	}

	m.PublishedMessages = append(m.PublishedMessages, PublishedMessage{
		Topic:   topic,
		ID:      msg.ID,
		Value:   msg.Value,
		Headers: msg.Headers,
	})

	return nil
}

func (m *MockProducer) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockProducer) GetPublishedMessages() []PublishedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := make([]PublishedMessage, len(m.PublishedMessages))
	copy(messages, m.PublishedMessages)
	return messages
}

func (m *MockProducer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishedMessages = make([]PublishedMessage, 0)
	m.failureCounter = 0
}

// MockWriter is a MessageWriter that records written messages.
// When Sink is set, every written message is delivered to it with the next offset.
type MockWriter struct {
	mu             sync.Mutex
	Messages       []kafka.Message
	WriteFunc      func(ctx context.Context, msgs ...kafka.Message) error
	FailCount      int
	Sink           *MockReader
	failureCounter int
	nextOffset     int64
	closed         bool
}

func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

func (w *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return io.ErrClosedPipe
	}
	if w.WriteFunc != nil {
		if err := w.WriteFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	if w.FailCount > 0 {
		w.failureCounter++
		if w.failureCounter <= w.FailCount {
			return fmt.Errorf("simulated write failure %d", w.failureCounter)
		}
	}

	for _, msg := range msgs {
		msg.Offset = w.nextOffset
		w.nextOffset++
		w.Messages = append(w.Messages, msg)
		if w.Sink != nil {
			w.Sink.Push(msg)
		}
	}
	return nil
}

func (w *MockWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *MockWriter) GetMessages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	messages := make([]kafka.Message, len(w.Messages))
	copy(messages, w.Messages)
	return messages
}

// MockReader is a MessageReader fed through Push. FetchMessage blocks until a
// message arrives, the context ends or the reader is closed.
type MockReader struct {
	mu        sync.Mutex
	messages  chan kafka.Message
	done      chan struct{}
	closeOnce sync.Once
	commits   []kafka.Message
	FetchFunc func(ctx context.Context) (kafka.Message, error)
	CloseFunc func() error
}

func NewMockReader(buffer int) *MockReader {
	return &MockReader{
		messages: make(chan kafka.Message, buffer),
		done:     make(chan struct{}),
	}
}

// Push queues a message for the next FetchMessage call
func (r *MockReader) Push(msg kafka.Message) {
	select {
	case r.messages <- msg:
	case <-r.done:
	}
}

func (r *MockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.FetchFunc != nil {
		return r.FetchFunc(ctx)
	}

	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-r.done:
		return kafka.Message{}, io.EOF
	case msg := <-r.messages:
		return msg, nil
	}
}

func (r *MockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *MockReader) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	if r.CloseFunc != nil {
		return r.CloseFunc()
	}
	return nil
}

// Commits returns the messages committed so far
func (r *MockReader) Commits() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	commits := make([]kafka.Message, len(r.commits))
	copy(commits, r.commits)
	return commits
}

// IsClosed reports whether Close has been called
func (r *MockReader) IsClosed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
