package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/internal/telemetry"
	"github.com/rasert/distributed-tracing-poc/pkg/models"

	kafka "github.com/segmentio/kafka-go"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/goleak"
)

func newTestConsumer(t *testing.T, reader *MockReader, metrics *observability.InMemoryMetrics, tp trace.TracerProvider) *Consumer {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	return NewConsumer(ConsumerConfig{
		Topic:           "texts",
		GroupID:         "text-forwarders",
		HandlerTimeout:  time.Second,
		ShutdownTimeout: 200 * time.Millisecond,
		FetchBackoff:    10 * time.Millisecond,
		Reader:          reader,
		Metrics:         metrics,
		Logger:          logger,
		TracerProvider:  tp,
	})
}

// runConsumer starts the loop and returns a function that stops it and reports Start's result.
func runConsumer(t *testing.T, consumer *Consumer, handler MessageHandler) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- consumer.Start(ctx, handler)
	}()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			return errors.New("consumer did not stop")
		}
	}
}

func TestConsumer_ProcessesAndCommits(t *testing.T) {
	defer goleak.VerifyNone(t)

	reader := NewMockReader(4)
	metrics := observability.NewInMemoryMetrics()
	consumer := newTestConsumer(t, reader, metrics, nil)

	var received atomic.Pointer[models.Message]
	stop := runConsumer(t, consumer, func(ctx context.Context, msg *models.Message) error {
		received.Store(msg)
		return nil
	})

	reader.Push(kafka.Message{
		Topic:     "texts",
		Partition: 2,
		Offset:    7,
		Value:     []byte("hello"),
		Headers:   []kafka.Header{{Key: models.HeaderMessageID, Value: []byte("msg-1")}},
	})

	require.Eventually(t, func() bool { return len(reader.Commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	msg := received.Load()
	require.NotNil(t, msg)
	assert.Equal(t, "msg-1", msg.ID)
	assert.Equal(t, "hello", msg.Text())
	assert.Equal(t, "texts [[2]] @7", msg.Position())
	assert.Equal(t, int64(7), reader.Commits()[0].Offset)
	assert.Equal(t, int64(1), metrics.GetReceived())
	assert.Equal(t, int64(1), metrics.GetProcessed())
	assert.Equal(t, int64(0), metrics.GetFailed())
}

func TestConsumer_ContinuesProducerTrace(t *testing.T) {
	defer goleak.VerifyNone(t)

	tp, recorder := newRecordingProvider()
	reader := NewMockReader(4)
	consumer := newTestConsumer(t, reader, observability.NewInMemoryMetrics(), tp)

	var handlerSpan atomic.Value
	stop := runConsumer(t, consumer, func(ctx context.Context, msg *models.Message) error {
		handlerSpan.Store(trace.SpanContextFromContext(ctx))
		return nil
	})

	ctx, parent := tp.Tracer("test").Start(context.Background(), "texts publish")
	msg := kafka.Message{Topic: "texts", Value: []byte("hello")}
	telemetry.W3CPropagator().Inject(ctx, NewHeaderCarrier(&msg))
	parent.End()
	reader.Push(msg)

	require.Eventually(t, func() bool { return len(reader.Commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	consumerSpan := spans[1]
	assert.Equal(t, "texts process", consumerSpan.Name())
	assert.Equal(t, trace.SpanKindConsumer, consumerSpan.SpanKind())
	assert.Equal(t, parent.SpanContext().TraceID(), consumerSpan.SpanContext().TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), consumerSpan.Parent().SpanID())

	group, ok := attrValue(consumerSpan.Attributes(), "messaging.kafka.consumer.group")
	require.True(t, ok)
	assert.Equal(t, "text-forwarders", group.AsString())

	sc, ok := handlerSpan.Load().(trace.SpanContext)
	require.True(t, ok)
	assert.Equal(t, consumerSpan.SpanContext().SpanID(), sc.SpanID())
}

func TestConsumer_HandlerErrorStillCommits(t *testing.T) {
	defer goleak.VerifyNone(t)

	tp, recorder := newRecordingProvider()
	reader := NewMockReader(4)
	metrics := observability.NewInMemoryMetrics()
	consumer := newTestConsumer(t, reader, metrics, tp)

	stop := runConsumer(t, consumer, func(ctx context.Context, msg *models.Message) error {
		if msg.Text() == "bad" {
			return errors.New("persistence unavailable")
		}
		return nil
	})

	reader.Push(kafka.Message{Topic: "texts", Offset: 0, Value: []byte("bad")})
	reader.Push(kafka.Message{Topic: "texts", Offset: 1, Value: []byte("good")})

	require.Eventually(t, func() bool { return len(reader.Commits()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	assert.Equal(t, int64(1), metrics.GetFailed())
	assert.Equal(t, int64(1), metrics.GetProcessed())

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}

func TestConsumer_RecoversFromPanic(t *testing.T) {
	defer goleak.VerifyNone(t)

	reader := NewMockReader(4)
	metrics := observability.NewInMemoryMetrics()
	consumer := newTestConsumer(t, reader, metrics, nil)

	stop := runConsumer(t, consumer, func(ctx context.Context, msg *models.Message) error {
		panic("boom")
	})

	reader.Push(kafka.Message{Topic: "texts", Value: []byte("hello")})

	require.Eventually(t, func() bool { return len(reader.Commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
	assert.Equal(t, int64(1), metrics.GetFailed())
}

func TestConsumer_FetchErrorBacksOff(t *testing.T) {
	defer goleak.VerifyNone(t)

	reader := NewMockReader(1)
	var calls atomic.Int32
	reader.FetchFunc = func(ctx context.Context) (kafka.Message, error) {
		if calls.Add(1) == 1 {
			return kafka.Message{}, errors.New("coordinator not available")
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	metrics := observability.NewInMemoryMetrics()
	consumer := newTestConsumer(t, reader, metrics, nil)

	stop := runConsumer(t, consumer, func(ctx context.Context, msg *models.Message) error {
		return nil
	})

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
	assert.Equal(t, int64(1), metrics.GetFailed())
	assert.Equal(t, int64(0), metrics.GetReceived())
}

func TestConsumer_InFlightMessageSurvivesStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	reader := NewMockReader(1)
	consumer := newTestConsumer(t, reader, observability.NewInMemoryMetrics(), nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var ctxAlive atomic.Value
	stop := runConsumer(t, consumer, func(ctx context.Context, msg *models.Message) error {
		close(started)
		<-release
		ctxAlive.Store(ctx.Err() == nil)
		return nil
	})

	reader.Push(kafka.Message{Topic: "texts", Value: []byte("hello")})
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- stop() }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-stopped)
	assert.Equal(t, true, ctxAlive.Load())
	assert.Len(t, reader.Commits(), 1)
}

func TestConsumer_StopsWhenReaderClosed(t *testing.T) {
	defer goleak.VerifyNone(t)

	reader := NewMockReader(1)
	consumer := newTestConsumer(t, reader, observability.NewInMemoryMetrics(), nil)

	done := make(chan error, 1)
	go func() {
		done <- consumer.Start(context.Background(), func(ctx context.Context, msg *models.Message) error {
			return nil
		})
	}()

	require.NoError(t, consumer.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after close")
	}
	assert.True(t, reader.IsClosed())
}

func TestConsumer_CloseTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	reader := NewMockReader(1)
	release := make(chan struct{})
	reader.CloseFunc = func() error {
		<-release
		return nil
	}
	consumer := newTestConsumer(t, reader, observability.NewInMemoryMetrics(), nil)

	err := consumer.Close()
	close(release)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	// Close is idempotent
	assert.Equal(t, err, consumer.Close())
}

func TestConsumer_NilHandler(t *testing.T) {
	consumer := newTestConsumer(t, NewMockReader(1), observability.NewInMemoryMetrics(), nil)
	assert.Error(t, consumer.Start(context.Background(), nil))
}
