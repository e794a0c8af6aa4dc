package repository

import (
	"context"
	"errors"
	"fmt"

	memstore "github.com/fgrng/yourmoment/internal/repository/memory"

	"github.com/fgrng/yourmoment/internal/domain"
)

// MemoryProcessRepository implements ProcessRepository in-memory.
type MemoryProcessRepository struct {
	store *memstore.Store[*domain.Process]
}

func NewMemoryProcessRepository() *MemoryProcessRepository {
	return &MemoryProcessRepository{
		store: memstore.New(func(p *domain.Process) string { return p.ID }),
	}
}

func (r *MemoryProcessRepository) Create(ctx context.Context, p *domain.Process) error {
	if r.store.Has(ctx, p.ID) {
		return fmt.Errorf("process %q already exists", p.ID)
	}
	return r.store.Set(ctx, p)
}

func (r *MemoryProcessRepository) Get(ctx context.Context, id string) (*domain.Process, error) {
	p, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, fmt.Errorf("process %q not found: %w", id, ErrNotFound)
	}
	return p, err
}

func (r *MemoryProcessRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Process, error) {
	return r.store.Filter(ctx, func(p *domain.Process) bool { return p.OwnerID == ownerID })
}

func (r *MemoryProcessRepository) ListRunning(ctx context.Context) ([]*domain.Process, error) {
	return r.store.Filter(ctx, func(p *domain.Process) bool { return p.Status == domain.ProcessRunning })
}

func (r *MemoryProcessRepository) Update(ctx context.Context, p *domain.Process) error {
	if !r.store.Has(ctx, p.ID) {
		return fmt.Errorf("process %q not found", p.ID)
	}
	return r.store.Set(ctx, p)
}

func (r *MemoryProcessRepository) Delete(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("process %q not found", id)
	}
	return err
}
