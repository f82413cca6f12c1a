package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/internal/telemetry"
	"github.com/rasert/distributed-tracing-poc/pkg/models"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// MessageHandler processes consumed messages
type MessageHandler func(ctx context.Context, msg *models.Message) error

// ConsumerClient defines the interface for Kafka consumer operations
type ConsumerClient interface {
	Start(ctx context.Context, handler MessageHandler) error
	Close() error
}

// MessageReader is the subset of *kafka.Reader the consumer depends on
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer implements ConsumerClient as a single sequential fetch/handle/commit loop
type Consumer struct {
	reader          MessageReader
	logger          *logrus.Logger
	metrics         observability.MetricsCollector
	tracer          trace.Tracer
	propagator      propagation.TextMapPropagator
	groupID         string
	handlerTimeout  time.Duration
	shutdownTimeout time.Duration
	fetchBackoff    time.Duration
	closeOnce       sync.Once
	closeErr        error
}

type ConsumerConfig struct {
	Brokers         []string
	Topic           string
	GroupID         string
	HandlerTimeout  time.Duration
	ShutdownTimeout time.Duration
	FetchBackoff    time.Duration
	Reader          MessageReader
	Metrics         observability.MetricsCollector
	Logger          *logrus.Logger
	TracerProvider  trace.TracerProvider
	Propagator      propagation.TextMapPropagator
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.GetLogger()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = noop.NewTracerProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = telemetry.W3CPropagator()
	}
	if cfg.HandlerTimeout == 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.FetchBackoff == 0 {
		cfg.FetchBackoff = time.Second
	}

	reader := cfg.Reader
	if reader == nil {
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          cfg.Topic,
			GroupID:        cfg.GroupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        time.Second,
			CommitInterval: 0, // Synchronous commits after each message
			StartOffset:    kafka.FirstOffset,
			Logger:         kafka.LoggerFunc(cfg.Logger.WithField("component", "kafka-reader").Debugf),
			ErrorLogger:    kafka.LoggerFunc(cfg.Logger.WithField("component", "kafka-reader").Errorf),
		})
	}

	return &Consumer{
		reader:          reader,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		tracer:          cfg.TracerProvider.Tracer(instrumentationName),
		propagator:      cfg.Propagator,
		groupID:         cfg.GroupID,
		handlerTimeout:  cfg.HandlerTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
		fetchBackoff:    cfg.FetchBackoff,
	}
}

// Start consumes messages one at a time until ctx is cancelled or the reader is closed.
// Fetch and handler failures are logged and never end the loop.
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	c.logger.WithField("group_id", c.groupID).Info("Starting consumer")

	for {
		if ctx.Err() != nil {
			c.logger.Info("Consumer stopping due to context cancellation")
			return nil
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Consumer stopping due to context cancellation")
				return nil
			}
			if errors.Is(err, io.EOF) {
				c.logger.Info("Consumer stopping - reader closed")
				return nil
			}
			c.metrics.IncFailed()
			c.logger.WithError(err).Error("Failed to fetch message")

			select {
			case <-ctx.Done():
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		c.metrics.IncReceived()
		c.processMessage(ctx, msg, handler)
	}
}

// processMessage runs the handler inside a consumer span parented by the
// producer's context and commits the offset whatever the outcome.
func (c *Consumer) processMessage(ctx context.Context, kafkaMsg kafka.Message, handler MessageHandler) {
	msg := c.toInternalMessage(kafkaMsg)

	// The in-flight message is allowed to finish after a stop signal, bounded by handlerTimeout
	handlerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.handlerTimeout)
	defer cancel()

	handlerCtx = c.propagator.Extract(handlerCtx, NewHeaderCarrier(&kafkaMsg))
	handlerCtx, span := c.tracer.Start(handlerCtx, kafkaMsg.Topic+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(kafkaMsg.Topic),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(kafkaMsg.Partition)),
			semconv.MessagingKafkaMessageOffset(int(kafkaMsg.Offset)),
			semconv.MessagingMessageID(msg.ID),
			attribute.String("messaging.kafka.consumer.group", c.groupID),
		),
	)
	defer span.End()

	logger := observability.WithSpan(handlerCtx, c.logger).WithFields(logrus.Fields{
		"topic":      kafkaMsg.Topic,
		"partition":  kafkaMsg.Partition,
		"offset":     kafkaMsg.Offset,
		"message_id": msg.ID,
	})

	if err := c.runHandler(handlerCtx, handler, msg); err != nil {
		c.metrics.IncFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithError(err).Error("Message processing failed")
	} else {
		c.metrics.IncProcessed()
		logger.Debug("Message processed successfully")
	}

	c.commitMessage(ctx, kafkaMsg)
}

func (c *Consumer) runHandler(ctx context.Context, handler MessageHandler, msg *models.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Panic in message handler")
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, msg)
}

// commitMessage commits the message offset, even after ctx is cancelled
func (c *Consumer) commitMessage(ctx context.Context, msg kafka.Message) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.shutdownTimeout)
	defer cancel()

	if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
		c.logger.WithError(err).Error("Failed to commit message")
	}
}

// toInternalMessage converts Kafka message to internal format
func (c *Consumer) toInternalMessage(kafkaMsg kafka.Message) *models.Message {
	headers := make(map[string]string, len(kafkaMsg.Headers))
	for _, h := range kafkaMsg.Headers {
		headers[h.Key] = string(h.Value)
	}

	return &models.Message{
		ID:        headers[models.HeaderMessageID],
		Value:     kafkaMsg.Value,
		Headers:   headers,
		Topic:     kafkaMsg.Topic,
		Partition: kafkaMsg.Partition,
		Offset:    kafkaMsg.Offset,
		Timestamp: kafkaMsg.Time,
	}
}

// Close gracefully shuts down the consumer, giving up after the shutdown timeout
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		c.logger.Info("Closing consumer")

		done := make(chan error, 1)
		go func() {
			done <- c.reader.Close()
		}()

		select {
		case err := <-done:
			if err != nil {
				c.closeErr = fmt.Errorf("failed to close consumer: %w", err)
			}
		case <-time.After(c.shutdownTimeout):
			c.closeErr = errors.New("timed out closing consumer")
		}
	})
	return c.closeErr
}
