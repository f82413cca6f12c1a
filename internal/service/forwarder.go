package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/internal/telemetry"
	"github.com/rasert/distributed-tracing-poc/pkg/models"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const saveTextPath = "/save-text"

type ForwarderConfig struct {
	PersistenceURL string
	Timeout        time.Duration
	Metrics        observability.MetricsCollector
	Logger         *logrus.Logger
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

// TextForwarder handles consumed messages by posting their text to the persistence api
type TextForwarder struct {
	client  *resty.Client
	metrics observability.MetricsCollector
	logger  *logrus.Logger
	tracer  trace.Tracer
}

func NewTextForwarder(cfg ForwarderConfig) *TextForwarder {
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
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.PersistenceURL).
		SetTimeout(cfg.Timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(cfg.TracerProvider),
			otelhttp.WithPropagators(cfg.Propagator),
		))

	return &TextForwarder{
		client:  client,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		tracer:  cfg.TracerProvider.Tracer(instrumentationName),
	}
}

// Handle forwards one consumed message. Texts carrying the consumer marker are
// skipped without error; a non-2xx response or transport failure is returned.
func (f *TextForwarder) Handle(ctx context.Context, msg *models.Message) error {
	text := msg.Text()

	ctx, span := f.tracer.Start(ctx, "consume-text", trace.WithAttributes(
		attribute.String("text", text),
		semconv.MessagingDestinationName(msg.Topic),
		semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
		semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
	))
	defer span.End()

	logger := observability.WithSpan(ctx, f.logger).WithField("message_id", msg.ID)
	logger.Infof("Consumed message '%s' at: '%s'", text, msg.Position())
	span.AddEvent("message consumed")

	if containsMarkerFold(text, ConsumerSkipMarker) {
		f.metrics.IncSkipped()
		span.AddEvent("forward skipped", trace.WithAttributes(attribute.String("marker", ConsumerSkipMarker)))
		logger.Warnf("Message contains %q, not forwarding to persistence api", ConsumerSkipMarker)
		return nil
	}

	span.AddEvent("sending to persistence api")
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.SaveTextRequest{Text: text}).
		Post(saveTextPath)
	if err != nil {
		f.metrics.IncForwardFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence api request failed")
		return fmt.Errorf("failed to call persistence api: %w", err)
	}

	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode()))
	if !resp.IsSuccess() {
		f.metrics.IncForwardFailed()
		err := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	f.metrics.IncForwarded()
	span.AddEvent("persistence api responded ok")
	logger.WithField("status", resp.StatusCode()).Info("Text forwarded to persistence api")
	return nil
}
