package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fgrng/yourmoment/internal/domain"
)

// ProcessDB defines the DB-layer methods needed by the persistent process
// repository. *db.DB satisfies this interface.
type ProcessDB interface {
	CreateProcess(ctx context.Context, p *domain.Process) error
	GetProcess(ctx context.Context, id string) (*domain.Process, error)
	ListProcessesByOwner(ctx context.Context, ownerID string) ([]*domain.Process, error)
	ListRunningProcesses(ctx context.Context) ([]*domain.Process, error)
	UpdateProcess(ctx context.Context, p *domain.Process) error
	DeleteProcess(ctx context.Context, id string) error
}

// PersistentProcessRepository wraps MemoryProcessRepository with a
// PostgreSQL backend.
type PersistentProcessRepository struct {
	mem *MemoryProcessRepository
	db  ProcessDB
}

func NewPersistentProcessRepository(mem *MemoryProcessRepository, db ProcessDB) *PersistentProcessRepository {
	return &PersistentProcessRepository{mem: mem, db: db}
}

func (r *PersistentProcessRepository) Create(ctx context.Context, p *domain.Process) error {
	_ = r.mem.Create(ctx, p)
	if err := r.db.CreateProcess(ctx, p); err != nil {
		return fmt.Errorf("db create process: %w", err)
	}
	return nil
}

func (r *PersistentProcessRepository) Get(ctx context.Context, id string) (*domain.Process, error) {
	if p, err := r.mem.Get(ctx, id); err == nil {
		return p, nil
	}
	p, err := r.db.GetProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.mem.Create(ctx, p)
	return p, nil
}

func (r *PersistentProcessRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Process, error) {
	procs, err := r.db.ListProcessesByOwner(ctx, ownerID)
	if err == nil {
		return procs, nil
	}
	slog.Warn("db list processes failed, falling back to in-memory", "err", err)
	return r.mem.ListByOwner(ctx, ownerID)
}

func (r *PersistentProcessRepository) ListRunning(ctx context.Context) ([]*domain.Process, error) {
	procs, err := r.db.ListRunningProcesses(ctx)
	if err == nil {
		return procs, nil
	}
	slog.Warn("db list running processes failed, falling back to in-memory", "err", err)
	return r.mem.ListRunning(ctx)
}

func (r *PersistentProcessRepository) Update(ctx context.Context, p *domain.Process) error {
	_ = r.mem.Update(ctx, p)
	if err := r.db.UpdateProcess(ctx, p); err != nil {
		return fmt.Errorf("db update process: %w", err)
	}
	return nil
}

func (r *PersistentProcessRepository) Delete(ctx context.Context, id string) error {
	_ = r.mem.Delete(ctx, id)
	if err := r.db.DeleteProcess(ctx, id); err != nil {
		return fmt.Errorf("db delete process: %w", err)
	}
	return nil
}
