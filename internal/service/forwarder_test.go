package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/pkg/models"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type capturedRequest struct {
	Path        string
	Body        string
	ContentType string
	Traceparent string
}

// persistenceStub records every request and answers with status
type persistenceStub struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

func (s *persistenceStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, capturedRequest{
		Path:        r.URL.Path,
		Body:        string(body),
		ContentType: r.Header.Get("Content-Type"),
		Traceparent: r.Header.Get("traceparent"),
	})
	s.mu.Unlock()
	w.WriteHeader(s.status)
}

func (s *persistenceStub) Requests() []capturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capturedRequest(nil), s.requests...)
}

func newTestForwarder(t *testing.T, url string) (*TextForwarder, *observability.InMemoryMetrics, *tracetest.SpanRecorder, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	tp, recorder := newRecordingProvider()
	metrics := observability.NewInMemoryMetrics()
	f := NewTextForwarder(ForwarderConfig{
		PersistenceURL: url,
		Metrics:        metrics,
		Logger:         logger,
		TracerProvider: tp,
	})
	return f, metrics, recorder, hook
}

func consumedMessage(text string) *models.Message {
	msg := models.NewTextMessage("msg-1", text)
	msg.Topic = "text-topic"
	msg.Partition = 0
	msg.Offset = 5
	return msg
}

func TestTextForwarder_ForwardsText(t *testing.T) {
	stub := &persistenceStub{status: http.StatusOK}
	server := httptest.NewServer(stub)
	defer server.Close()

	f, metrics, recorder, hook := newTestForwarder(t, server.URL)

	require.NoError(t, f.Handle(context.Background(), consumedMessage(`say "hi"`)))

	requests := stub.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "/save-text", requests[0].Path)
	assert.JSONEq(t, `{"text":"say \"hi\""}`, requests[0].Body)
	assert.Contains(t, requests[0].ContentType, "application/json")
	assert.Equal(t, int64(1), metrics.GetForwarded())

	span := findSpan(recorder, "consume-text")
	require.NotNil(t, span)
	assert.Equal(t, []string{
		"message consumed",
		"sending to persistence api",
		"persistence api responded ok",
	}, eventNames(span))
	assert.Equal(t, codes.Unset, span.Status().Code)

	// The outgoing request carries a context of the same trace
	require.NotEmpty(t, requests[0].Traceparent)
	assert.Contains(t, requests[0].Traceparent, span.SpanContext().TraceID().String())

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == `Consumed message 'say "hi"' at: 'text-topic [[0]] @5'` {
			logged = true
		}
	}
	assert.True(t, logged, "consumed message log line")
}

func TestTextForwarder_SkipsMarker(t *testing.T) {
	stub := &persistenceStub{status: http.StatusOK}
	server := httptest.NewServer(stub)
	defer server.Close()

	f, metrics, recorder, hook := newTestForwarder(t, server.URL)

	require.NoError(t, f.Handle(context.Background(), consumedMessage("this has a .NET error")))

	assert.Empty(t, stub.Requests())
	assert.Equal(t, int64(1), metrics.GetSkipped())
	assert.Equal(t, int64(0), metrics.GetForwarded())

	span := findSpan(recorder, "consume-text")
	require.NotNil(t, span)
	assert.Equal(t, []string{"message consumed", "forward skipped"}, eventNames(span))
	assert.Equal(t, codes.Unset, span.Status().Code)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestTextForwarder_NonSuccessStatus(t *testing.T) {
	stub := &persistenceStub{status: http.StatusInternalServerError}
	server := httptest.NewServer(stub)
	defer server.Close()

	f, metrics, recorder, _ := newTestForwarder(t, server.URL)

	err := f.Handle(context.Background(), consumedMessage("hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "500")
	assert.Len(t, stub.Requests(), 1)
	assert.Equal(t, int64(1), metrics.GetForwardFailed())

	span := findSpan(recorder, "consume-text")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.NotContains(t, eventNames(span), "persistence api responded ok")
}

func TestTextForwarder_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	f, metrics, recorder, _ := newTestForwarder(t, url)

	err := f.Handle(context.Background(), consumedMessage("hello"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to call persistence api"))
	assert.Equal(t, int64(1), metrics.GetForwardFailed())

	span := findSpan(recorder, "consume-text")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
}
