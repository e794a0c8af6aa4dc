package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fgrng/yourmoment/internal/domain"
)

// PromptTemplateDB defines the DB-layer methods needed by the persistent
// prompt template repository. *db.DB satisfies this interface.
type PromptTemplateDB interface {
	CreatePromptTemplate(ctx context.Context, t *domain.PromptTemplate) error
	GetPromptTemplate(ctx context.Context, id string) (*domain.PromptTemplate, error)
	ListPromptTemplatesByOwner(ctx context.Context, ownerID string) ([]*domain.PromptTemplate, error)
	DeletePromptTemplate(ctx context.Context, id string) error
}

// PersistentPromptTemplateRepository wraps MemoryPromptTemplateRepository
// with a PostgreSQL backend.
type PersistentPromptTemplateRepository struct {
	mem *MemoryPromptTemplateRepository
	db  PromptTemplateDB
}

func NewPersistentPromptTemplateRepository(mem *MemoryPromptTemplateRepository, db PromptTemplateDB) *PersistentPromptTemplateRepository {
	return &PersistentPromptTemplateRepository{mem: mem, db: db}
}

func (r *PersistentPromptTemplateRepository) Create(ctx context.Context, t *domain.PromptTemplate) error {
	_ = r.mem.Create(ctx, t)
	if err := r.db.CreatePromptTemplate(ctx, t); err != nil {
		return fmt.Errorf("db create prompt template: %w", err)
	}
	return nil
}

func (r *PersistentPromptTemplateRepository) Get(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	if t, err := r.mem.Get(ctx, id); err == nil {
		return t, nil
	}
	t, err := r.db.GetPromptTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.mem.Create(ctx, t)
	return t, nil
}

func (r *PersistentPromptTemplateRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.PromptTemplate, error) {
	templates, err := r.db.ListPromptTemplatesByOwner(ctx, ownerID)
	if err == nil {
		return templates, nil
	}
	slog.Warn("db list prompt templates failed, falling back to in-memory", "err", err)
	return r.mem.ListByOwner(ctx, ownerID)
}

func (r *PersistentPromptTemplateRepository) Delete(ctx context.Context, id string) error {
	_ = r.mem.Delete(ctx, id)
	if err := r.db.DeletePromptTemplate(ctx, id); err != nil {
		return fmt.Errorf("db delete prompt template: %w", err)
	}
	return nil
}
