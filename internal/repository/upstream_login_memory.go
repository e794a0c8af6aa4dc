package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	memstore "github.com/fgrng/yourmoment/internal/repository/memory"

	"github.com/fgrng/yourmoment/internal/domain"
)

// MemoryUpstreamLoginRepository implements UpstreamLoginRepository in-memory.
type MemoryUpstreamLoginRepository struct {
	store *memstore.Store[*domain.UpstreamLogin]
}

func NewMemoryUpstreamLoginRepository() *MemoryUpstreamLoginRepository {
	return &MemoryUpstreamLoginRepository{
		store: memstore.New(func(l *domain.UpstreamLogin) string { return l.ID }),
	}
}

func (r *MemoryUpstreamLoginRepository) Create(ctx context.Context, l *domain.UpstreamLogin) error {
	if r.store.Has(ctx, l.ID) {
		return fmt.Errorf("upstream login %q already exists", l.ID)
	}
	return r.store.Set(ctx, l)
}

func (r *MemoryUpstreamLoginRepository) Get(ctx context.Context, id string) (*domain.UpstreamLogin, error) {
	l, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, fmt.Errorf("upstream login %q not found: %w", id, ErrNotFound)
	}
	return l, err
}

func (r *MemoryUpstreamLoginRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.UpstreamLogin, error) {
	return r.store.Filter(ctx, func(l *domain.UpstreamLogin) bool { return l.OwnerID == ownerID })
}

func (r *MemoryUpstreamLoginRepository) Touch(ctx context.Context, id string) error {
	l, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	l.LastUsedAt = &now
	return r.store.Set(ctx, l)
}

func (r *MemoryUpstreamLoginRepository) Delete(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("upstream login %q not found", id)
	}
	return err
}
