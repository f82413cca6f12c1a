package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/internal/telemetry"
	"github.com/rasert/distributed-tracing-poc/pkg/models"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/rasert/distributed-tracing-poc/internal/kafka"

// ProducerClient defines the interface for Kafka producer operations
type ProducerClient interface {
	Publish(ctx context.Context, topic string, msg *models.Message) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer the producer depends on
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer implements ProducerClient, injecting the trace context into message headers
type Producer struct {
	writer     MessageWriter
	logger     *logrus.Logger
	metrics    observability.MetricsCollector
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

type ProducerConfig struct {
	Brokers        []string
	Acks           int // -1 for all, 0 for none, 1 for leader
	MaxAttempts    int
	WriteTimeout   time.Duration
	Writer         MessageWriter
	Metrics        observability.MetricsCollector
	Logger         *logrus.Logger
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

func NewProducer(cfg ProducerConfig) *Producer {
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
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}

	writer := cfg.Writer
	if writer == nil {
		// Retries and partitioning are left to kafka-go
		writer = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequiredAcks(cfg.Acks),
			MaxAttempts:            cfg.MaxAttempts,
			WriteTimeout:           cfg.WriteTimeout,
			ReadTimeout:            cfg.WriteTimeout,
			AllowAutoTopicCreation: true,
			Async:                  false, // Synchronous for reliable error handling
			Logger:                 kafka.LoggerFunc(cfg.Logger.WithField("component", "kafka-writer").Debugf),
			ErrorLogger:            kafka.LoggerFunc(cfg.Logger.WithField("component", "kafka-writer").Errorf),
		}
	}

	return &Producer{
		writer:     writer,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		tracer:     cfg.TracerProvider.Tracer(instrumentationName),
		propagator: cfg.Propagator,
	}
}

// Publish writes one unkeyed message to topic inside a producer span whose
// context travels in the message headers.
func (p *Producer) Publish(ctx context.Context, topic string, msg *models.Message) (err error) {
	if msg == nil {
		return errors.New("message cannot be nil")
	}

	ctx, span := p.tracer.Start(ctx, topic+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(topic),
			semconv.MessagingMessageID(msg.ID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	kafkaMsg := kafka.Message{
		Topic: topic,
		Value: msg.Value,
		Time:  time.Now(),
	}
	if len(msg.Headers) > 0 {
		kafkaMsg.Headers = make([]kafka.Header, 0, len(msg.Headers)+2)
		for k, v := range msg.Headers {
			kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{
				Key:   k,
				Value: []byte(v),
			})
		}
	}
	p.propagator.Inject(ctx, NewHeaderCarrier(&kafkaMsg))

	logger := observability.WithSpan(ctx, p.logger).WithFields(logrus.Fields{
		"topic":      topic,
		"message_id": msg.ID,
	})

	if writeErr := p.writer.WriteMessages(ctx, kafkaMsg); writeErr != nil {
		p.metrics.IncPublishFailed()
		logger.WithError(writeErr).Error("Failed to publish message")
		return fmt.Errorf("failed to publish message: %w", writeErr)
	}

	p.metrics.IncPublished()
	logger.Info("Message published successfully")
	return nil
}

// Close gracefully shuts down the producer
func (p *Producer) Close() error {
	p.logger.Info("Closing producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	return nil
}
