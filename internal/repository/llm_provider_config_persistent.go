package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fgrng/yourmoment/internal/domain"
)

// LLMProviderConfigDB defines the DB-layer methods needed by the
// persistent LLM provider config repository. *db.DB satisfies this
// interface.
type LLMProviderConfigDB interface {
	CreateLLMProviderConfig(ctx context.Context, c *domain.LLMProviderConfig) error
	GetLLMProviderConfig(ctx context.Context, id string) (*domain.LLMProviderConfig, error)
	ListLLMProviderConfigsByOwner(ctx context.Context, ownerID string) ([]*domain.LLMProviderConfig, error)
	DeleteLLMProviderConfig(ctx context.Context, id string) error
}

// PersistentLLMProviderConfigRepository wraps
// MemoryLLMProviderConfigRepository with a PostgreSQL backend.
type PersistentLLMProviderConfigRepository struct {
	mem *MemoryLLMProviderConfigRepository
	db  LLMProviderConfigDB
}

func NewPersistentLLMProviderConfigRepository(mem *MemoryLLMProviderConfigRepository, db LLMProviderConfigDB) *PersistentLLMProviderConfigRepository {
	return &PersistentLLMProviderConfigRepository{mem: mem, db: db}
}

func (r *PersistentLLMProviderConfigRepository) Create(ctx context.Context, c *domain.LLMProviderConfig) error {
	_ = r.mem.Create(ctx, c)
	if err := r.db.CreateLLMProviderConfig(ctx, c); err != nil {
		return fmt.Errorf("db create llm provider config: %w", err)
	}
	return nil
}

func (r *PersistentLLMProviderConfigRepository) Get(ctx context.Context, id string) (*domain.LLMProviderConfig, error) {
	if c, err := r.mem.Get(ctx, id); err == nil {
		return c, nil
	}
	c, err := r.db.GetLLMProviderConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.mem.Create(ctx, c)
	return c, nil
}

func (r *PersistentLLMProviderConfigRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.LLMProviderConfig, error) {
	configs, err := r.db.ListLLMProviderConfigsByOwner(ctx, ownerID)
	if err == nil {
		return configs, nil
	}
	slog.Warn("db list llm provider configs failed, falling back to in-memory", "err", err)
	return r.mem.ListByOwner(ctx, ownerID)
}

func (r *PersistentLLMProviderConfigRepository) Delete(ctx context.Context, id string) error {
	_ = r.mem.Delete(ctx, id)
	if err := r.db.DeleteLLMProviderConfig(ctx, id); err != nil {
		return fmt.Errorf("db delete llm provider config: %w", err)
	}
	return nil
}
