package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rasert/distributed-tracing-poc/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type publisherFunc func(ctx context.Context, text string) error

func (f publisherFunc) Publish(ctx context.Context, text string) error { return f(ctx, text) }

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPublisherHandler_PublishText(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		publishErr error
		wantStatus int
		wantBody   string
		wantCalled bool
	}{
		{
			name:       "success",
			body:       `{"text":"hello"}`,
			wantStatus: http.StatusOK,
			wantBody:   "Message sent to Kafka",
			wantCalled: true,
		},
		{
			name:       "missing text",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Text is required",
		},
		{
			name:       "empty text",
			body:       `{"text":""}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Text is required",
		},
		{
			name:       "invalid json",
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Text is required",
		},
		{
			name:       "simulated failure",
			body:       `{"text":"node error"}`,
			publishErr: service.ErrSimulatedFailure,
			wantStatus: http.StatusInternalServerError,
			wantBody:   `Text contains "node error"`,
			wantCalled: true,
		},
		{
			name:       "broker failure",
			body:       `{"text":"hello"}`,
			publishErr: errors.New("failed to publish message: broker down"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Failed to send message",
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := NewPublisherHandler(publisherFunc(func(ctx context.Context, text string) error {
				called = true
				return tt.publishErr
			}))
			r := gin.New()
			h.Register(r)

			w := serve(r, http.MethodPost, "/publish-text", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
			assert.Equal(t, tt.wantCalled, called)
		})
	}
}
