package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fgrng/yourmoment/internal/domain"
)

// UpstreamLoginDB defines the DB-layer methods needed by the persistent
// upstream login repository. *db.DB satisfies this interface.
type UpstreamLoginDB interface {
	CreateUpstreamLogin(ctx context.Context, l *domain.UpstreamLogin) error
	GetUpstreamLogin(ctx context.Context, id string) (*domain.UpstreamLogin, error)
	ListUpstreamLoginsByOwner(ctx context.Context, ownerID string) ([]*domain.UpstreamLogin, error)
	TouchUpstreamLogin(ctx context.Context, id string) error
	DeleteUpstreamLogin(ctx context.Context, id string) error
}

// PersistentUpstreamLoginRepository wraps MemoryUpstreamLoginRepository
// with a PostgreSQL backend.
type PersistentUpstreamLoginRepository struct {
	mem *MemoryUpstreamLoginRepository
	db  UpstreamLoginDB
}

func NewPersistentUpstreamLoginRepository(mem *MemoryUpstreamLoginRepository, db UpstreamLoginDB) *PersistentUpstreamLoginRepository {
	return &PersistentUpstreamLoginRepository{mem: mem, db: db}
}

func (r *PersistentUpstreamLoginRepository) Create(ctx context.Context, l *domain.UpstreamLogin) error {
	_ = r.mem.Create(ctx, l)
	if err := r.db.CreateUpstreamLogin(ctx, l); err != nil {
		return fmt.Errorf("db create upstream login: %w", err)
	}
	return nil
}

func (r *PersistentUpstreamLoginRepository) Get(ctx context.Context, id string) (*domain.UpstreamLogin, error) {
	if l, err := r.mem.Get(ctx, id); err == nil {
		return l, nil
	}
	l, err := r.db.GetUpstreamLogin(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.mem.Create(ctx, l)
	return l, nil
}

func (r *PersistentUpstreamLoginRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.UpstreamLogin, error) {
	logins, err := r.db.ListUpstreamLoginsByOwner(ctx, ownerID)
	if err == nil {
		return logins, nil
	}
	slog.Warn("db list upstream logins failed, falling back to in-memory", "err", err)
	return r.mem.ListByOwner(ctx, ownerID)
}

func (r *PersistentUpstreamLoginRepository) Touch(ctx context.Context, id string) error {
	_ = r.mem.Touch(ctx, id)
	if err := r.db.TouchUpstreamLogin(ctx, id); err != nil {
		return fmt.Errorf("db touch upstream login: %w", err)
	}
	return nil
}

func (r *PersistentUpstreamLoginRepository) Delete(ctx context.Context, id string) error {
	_ = r.mem.Delete(ctx, id)
	if err := r.db.DeleteUpstreamLogin(ctx, id); err != nil {
		return fmt.Errorf("db delete upstream login: %w", err)
	}
	return nil
}
