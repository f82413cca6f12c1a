package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rasert/distributed-tracing-poc/internal/service"
	"github.com/rasert/distributed-tracing-poc/pkg/models"

	"github.com/gin-gonic/gin"
)

// Publisher is the part of service.TextPublisher the handler depends on
type Publisher interface {
	Publish(ctx context.Context, text string) error
}

type PublisherHandler struct {
	publisher Publisher
}

func NewPublisherHandler(publisher Publisher) *PublisherHandler {
	return &PublisherHandler{publisher: publisher}
}

func (h *PublisherHandler) Register(r gin.IRoutes) {
	r.POST("/publish-text", h.PublishText)
}

// PublishText answers in plain text: 200 on send, 400 without text, 500 on
// simulated or broker failure.
func (h *PublisherHandler) PublishText(c *gin.Context) {
	var req models.SaveTextRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.String(http.StatusBadRequest, "Text is required")
		return
	}

	err := h.publisher.Publish(c.Request.Context(), req.Text)
	switch {
	case err == nil:
		c.String(http.StatusOK, "Message sent to Kafka")
	case errors.Is(err, service.ErrTextRequired):
		c.String(http.StatusBadRequest, "Text is required")
	case errors.Is(err, service.ErrSimulatedFailure):
		c.String(http.StatusInternalServerError, fmt.Sprintf("Text contains %q", service.PublisherFailureMarker))
	default:
		c.String(http.StatusInternalServerError, "Failed to send message")
	}
}
