package repository

import (
	"context"
	"errors"
	"fmt"

	memstore "github.com/fgrng/yourmoment/internal/repository/memory"

	"github.com/fgrng/yourmoment/internal/domain"
)

// MemoryLLMProviderConfigRepository implements LLMProviderConfigRepository in-memory.
type MemoryLLMProviderConfigRepository struct {
	store *memstore.Store[*domain.LLMProviderConfig]
}

func NewMemoryLLMProviderConfigRepository() *MemoryLLMProviderConfigRepository {
	return &MemoryLLMProviderConfigRepository{
		store: memstore.New(func(c *domain.LLMProviderConfig) string { return c.ID }),
	}
}

func (r *MemoryLLMProviderConfigRepository) Create(ctx context.Context, c *domain.LLMProviderConfig) error {
	if r.store.Has(ctx, c.ID) {
		return fmt.Errorf("llm provider config %q already exists", c.ID)
	}
	return r.store.Set(ctx, c)
}

func (r *MemoryLLMProviderConfigRepository) Get(ctx context.Context, id string) (*domain.LLMProviderConfig, error) {
	c, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, fmt.Errorf("llm provider config %q not found: %w", id, ErrNotFound)
	}
	return c, err
}

func (r *MemoryLLMProviderConfigRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.LLMProviderConfig, error) {
	return r.store.Filter(ctx, func(c *domain.LLMProviderConfig) bool { return c.OwnerID == ownerID })
}

func (r *MemoryLLMProviderConfigRepository) Delete(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("llm provider config %q not found", id)
	}
	return err
}
