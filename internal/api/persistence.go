package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rasert/distributed-tracing-poc/internal/service"
	"github.com/rasert/distributed-tracing-poc/internal/storage"
	"github.com/rasert/distributed-tracing-poc/pkg/models"

	"github.com/gin-gonic/gin"
)

// TextStore is the part of service.TextStore the handler depends on
type TextStore interface {
	Save(ctx context.Context, text string) (*models.TextDocument, error)
	Get(ctx context.Context, id string) (*models.TextDocument, error)
	Update(ctx context.Context, id, text string) (*models.TextDocument, error)
	Delete(ctx context.Context, id string) error
}

type PersistenceHandler struct {
	store TextStore
}

func NewPersistenceHandler(store TextStore) *PersistenceHandler {
	return &PersistenceHandler{store: store}
}

func (h *PersistenceHandler) Register(r gin.IRoutes) {
	r.POST("/save-text", h.SaveText)
	r.GET("/texts/:id", h.GetText)
	r.PUT("/texts/:id", h.UpdateText)
	r.DELETE("/texts/:id", h.DeleteText)
}

func (h *PersistenceHandler) SaveText(c *gin.Context) {
	var req models.SaveTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.store.Save(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, service.ErrSimulatedFailure) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": fmt.Sprintf("request contains '%s'", service.PersistenceFailureMarker),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": fmt.Sprintf("Text '%s' saved", doc.Text),
		"id":     doc.ID,
	})
}

func (h *PersistenceHandler) GetText(c *gin.Context) {
	doc, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *PersistenceHandler) UpdateText(c *gin.Context) {
	var req models.SaveTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.store.Update(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *PersistenceHandler) DeleteText(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
