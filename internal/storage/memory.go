package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rasert/distributed-tracing-poc/pkg/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryTextRepository keeps documents in a map. Used by tests and PERSISTENCE_STORE=memory.
type MemoryTextRepository struct {
	mu   sync.RWMutex
	docs map[string]models.TextDocument
	now  func() time.Time
}

func NewMemoryTextRepository() *MemoryTextRepository {
	return &MemoryTextRepository{
		docs: make(map[string]models.TextDocument),
		now:  time.Now,
	}
}

func (r *MemoryTextRepository) Insert(_ context.Context, text string) (*models.TextDocument, error) {
	doc := models.TextDocument{
		ID:        bson.NewObjectID().Hex(),
		Text:      text,
		CreatedAt: r.now().UTC(),
	}

	r.mu.Lock()
	r.docs[doc.ID] = doc
	r.mu.Unlock()
	return &doc, nil
}

func (r *MemoryTextRepository) FindByID(_ context.Context, id string) (*models.TextDocument, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (r *MemoryTextRepository) Update(_ context.Context, id, text string) (*models.TextDocument, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	doc.Text = text
	r.docs[id] = doc
	return &doc, nil
}

func (r *MemoryTextRepository) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

// Len returns the number of stored documents
func (r *MemoryTextRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

func (r *MemoryTextRepository) Ping(context.Context) error  { return nil }
func (r *MemoryTextRepository) Close(context.Context) error { return nil }

func validateID(id string) error {
	if _, err := bson.ObjectIDFromHex(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
