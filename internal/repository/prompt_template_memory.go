package repository

import (
	"context"
	"errors"
	"fmt"

	memstore "github.com/fgrng/yourmoment/internal/repository/memory"

	"github.com/fgrng/yourmoment/internal/domain"
)

// MemoryPromptTemplateRepository implements PromptTemplateRepository in-memory.
type MemoryPromptTemplateRepository struct {
	store *memstore.Store[*domain.PromptTemplate]
}

func NewMemoryPromptTemplateRepository() *MemoryPromptTemplateRepository {
	return &MemoryPromptTemplateRepository{
		store: memstore.New(func(t *domain.PromptTemplate) string { return t.ID }),
	}
}

func (r *MemoryPromptTemplateRepository) Create(ctx context.Context, t *domain.PromptTemplate) error {
	if r.store.Has(ctx, t.ID) {
		return fmt.Errorf("prompt template %q already exists", t.ID)
	}
	return r.store.Set(ctx, t)
}

func (r *MemoryPromptTemplateRepository) Get(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	t, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, fmt.Errorf("prompt template %q not found: %w", id, ErrNotFound)
	}
	return t, err
}

func (r *MemoryPromptTemplateRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.PromptTemplate, error) {
	return r.store.Filter(ctx, func(t *domain.PromptTemplate) bool {
		return t.Category == domain.TemplateSystem || t.OwnerID == ownerID
	})
}

func (r *MemoryPromptTemplateRepository) Delete(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("prompt template %q not found", id)
	}
	return err
}
