// Package service holds the per-hop logic of the pipeline: publishing texts,
// forwarding consumed messages and storing them.
package service

import (
	"context"

	"github.com/rasert/distributed-tracing-poc/internal/kafka"
	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/rasert/distributed-tracing-poc/internal/service"

type PublisherConfig struct {
	Topic          string
	Producer       kafka.ProducerClient
	Metrics        observability.MetricsCollector
	Logger         *logrus.Logger
	TracerProvider trace.TracerProvider
}

// TextPublisher validates incoming texts and sends each accepted one to the topic
type TextPublisher struct {
	topic    string
	producer kafka.ProducerClient
	metrics  observability.MetricsCollector
	logger   *logrus.Logger
	tracer   trace.Tracer
}

func NewTextPublisher(cfg PublisherConfig) *TextPublisher {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewInMemoryMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.GetLogger()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = noop.NewTracerProvider()
	}
	return &TextPublisher{
		topic:    cfg.Topic,
		producer: cfg.Producer,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		tracer:   cfg.TracerProvider.Tracer(instrumentationName),
	}
}

// Publish sends text as one unkeyed message. Empty text is rejected before any
// span is opened; a text carrying the publisher marker fails inside the span.
func (p *TextPublisher) Publish(ctx context.Context, text string) error {
	if text == "" {
		p.metrics.IncRejected()
		return ErrTextRequired
	}

	ctx, span := p.tracer.Start(ctx, "publish-text")
	defer span.End()

	logger := observability.WithSpan(ctx, p.logger)

	if containsMarker(text, PublisherFailureMarker) {
		p.metrics.IncRejected()
		span.AddEvent("simulated failure", trace.WithAttributes(attribute.String("marker", PublisherFailureMarker)))
		span.SetStatus(codes.Error, ErrSimulatedFailure.Error())
		logger.WithField("text", text).Warn("Rejecting text with simulated failure marker")
		return ErrSimulatedFailure
	}

	span.AddEvent("publishing text to kafka", trace.WithAttributes(attribute.String("text", text)))

	msg := models.NewTextMessage(uuid.NewString(), text)
	if err := p.producer.Publish(ctx, p.topic, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send message")
		logger.WithError(err).Error("Failed to send message")
		return err
	}

	logger.WithFields(logrus.Fields{
		"topic":      p.topic,
		"message_id": msg.ID,
	}).Info("Text published")
	return nil
}
