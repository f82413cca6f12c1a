// Package storage persists the texts received by the persistence service.
package storage

import (
	"context"
	"errors"

	"github.com/rasert/distributed-tracing-poc/pkg/models"
)

var (
	ErrNotFound  = errors.New("text not found")
	ErrInvalidID = errors.New("invalid text id")
)

// TextRepository stores text documents. Ids are MongoDB ObjectID hex strings
// for every implementation.
type TextRepository interface {
	Insert(ctx context.Context, text string) (*models.TextDocument, error)
	FindByID(ctx context.Context, id string) (*models.TextDocument, error)
	Update(ctx context.Context, id, text string) (*models.TextDocument, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
