package service

import (
	"context"
	"errors"

	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/internal/storage"
	"github.com/rasert/distributed-tracing-poc/pkg/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type TextStoreConfig struct {
	Repository     storage.TextRepository
	Logger         *logrus.Logger
	TracerProvider trace.TracerProvider
}

// TextStore wraps a repository with the persistence service's spans and failure marker
type TextStore struct {
	repo   storage.TextRepository
	logger *logrus.Logger
	tracer trace.Tracer
}

func NewTextStore(cfg TextStoreConfig) *TextStore {
	if cfg.Logger == nil {
		cfg.Logger = observability.GetLogger()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = noop.NewTracerProvider()
	}
	return &TextStore{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}
}

// Save stores a bound request's text. Texts carrying the persistence marker
// return ErrSimulatedFailure without touching the repository.
func (s *TextStore) Save(ctx context.Context, text string) (doc *models.TextDocument, err error) {
	ctx, span := s.tracer.Start(ctx, "save-text", trace.WithAttributes(attribute.String("text", text)))
	defer func() {
		endSpan(span, err)
	}()
	span.AddEvent("bind ok")

	logger := observability.WithSpan(ctx, s.logger)

	if containsMarker(text, PersistenceFailureMarker) {
		span.AddEvent("simulated failure", trace.WithAttributes(attribute.String("marker", PersistenceFailureMarker)))
		logger.Warn("Rejecting text with simulated failure marker")
		return nil, ErrSimulatedFailure
	}

	doc, err = s.repo.Insert(ctx, text)
	if err != nil {
		logger.WithError(err).Error("Failed to save text")
		return nil, err
	}

	span.AddEvent("document saved", trace.WithAttributes(attribute.String("id", doc.ID)))
	logger.WithField("id", doc.ID).Info("Text saved")
	return doc, nil
}

func (s *TextStore) Get(ctx context.Context, id string) (doc *models.TextDocument, err error) {
	ctx, span := s.tracer.Start(ctx, "get-text", trace.WithAttributes(attribute.String("id", id)))
	defer func() {
		endSpan(span, err)
	}()

	return s.repo.FindByID(ctx, id)
}

func (s *TextStore) Update(ctx context.Context, id, text string) (doc *models.TextDocument, err error) {
	ctx, span := s.tracer.Start(ctx, "update-text", trace.WithAttributes(attribute.String("id", id)))
	defer func() {
		endSpan(span, err)
	}()

	doc, err = s.repo.Update(ctx, id, text)
	if err == nil {
		observability.WithSpan(ctx, s.logger).WithField("id", id).Info("Text updated")
	}
	return doc, err
}

func (s *TextStore) Delete(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "delete-text", trace.WithAttributes(attribute.String("id", id)))
	defer func() {
		endSpan(span, err)
	}()

	if err = s.repo.Delete(ctx, id); err == nil {
		observability.WithSpan(ctx, s.logger).WithField("id", id).Info("Text deleted")
	}
	return err
}

// Ping reports whether the underlying repository is reachable
func (s *TextStore) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// endSpan marks the span as failed unless err is nil or a lookup miss, then ends it.
// A simulated failure already carries its own event, so no exception is recorded for it.
func endSpan(span trace.Span, err error) {
	switch {
	case err == nil, errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidID):
	case errors.Is(err, ErrSimulatedFailure):
		span.SetStatus(codes.Error, err.Error())
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
