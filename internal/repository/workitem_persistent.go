package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fgrng/yourmoment/internal/db"
	"github.com/fgrng/yourmoment/internal/domain"
)

// WorkItemDB defines the DB-layer methods needed by the persistent work
// item repository. *db.DB satisfies this interface.
type WorkItemDB interface {
	CreateWorkItem(ctx context.Context, w *domain.WorkItem) error
	GetWorkItem(ctx context.Context, id string) (*domain.WorkItem, error)
	ListWorkItemsByStage(ctx context.Context, processID string, status domain.WorkItemStatus) ([]*domain.WorkItem, error)
	CountWorkItemsByStatus(ctx context.Context, processID string) (map[domain.WorkItemStatus]int, error)
	UpdateWorkItemToPrepared(ctx context.Context, w *domain.WorkItem) error
	UpdateWorkItemToGenerated(ctx context.Context, w *domain.WorkItem) error
	UpdateWorkItemToPosted(ctx context.Context, id, upstreamCommentID string, postedAt sql.NullTime) error
	MarkWorkItemFailed(ctx context.Context, id, errMsg string) error
}

// PersistentWorkItemRepository wraps MemoryWorkItemRepository with a
// PostgreSQL backend. Writes go to both; Get tries memory first and falls
// back to the database on miss, while ListByStage and CountByStatus query
// the database first and fall back to memory on a database error.
type PersistentWorkItemRepository struct {
	mem *MemoryWorkItemRepository
	db  WorkItemDB
}

func NewPersistentWorkItemRepository(mem *MemoryWorkItemRepository, db WorkItemDB) *PersistentWorkItemRepository {
	return &PersistentWorkItemRepository{mem: mem, db: db}
}

func (r *PersistentWorkItemRepository) Create(ctx context.Context, w *domain.WorkItem) error {
	if err := r.db.CreateWorkItem(ctx, w); err != nil {
		// DB is the single source of truth for the uniqueness constraint;
		// a duplicate there must not be silently cached in memory.
		if errors.Is(err, db.ErrDuplicateWorkItem) {
			return ErrDuplicateWorkItem
		}
		return fmt.Errorf("db create work item: %w", err)
	}
	_ = r.mem.Create(ctx, w)
	return nil
}

func (r *PersistentWorkItemRepository) Get(ctx context.Context, id string) (*domain.WorkItem, error) {
	if w, err := r.mem.Get(ctx, id); err == nil {
		return w, nil
	}
	w, err := r.db.GetWorkItem(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.mem.Create(ctx, w)
	return w, nil
}

func (r *PersistentWorkItemRepository) ListByStage(ctx context.Context, processID string, status domain.WorkItemStatus) ([]*domain.WorkItem, error) {
	items, err := r.db.ListWorkItemsByStage(ctx, processID, status)
	if err == nil {
		return items, nil
	}
	slog.Warn("db list work items failed, falling back to in-memory", "err", err)
	return r.mem.ListByStage(ctx, processID, status)
}

func (r *PersistentWorkItemRepository) CountByStatus(ctx context.Context, processID string) (map[domain.WorkItemStatus]int, error) {
	counts, err := r.db.CountWorkItemsByStatus(ctx, processID)
	if err == nil {
		return counts, nil
	}
	slog.Warn("db count work items failed, falling back to in-memory", "err", err)
	return r.mem.CountByStatus(ctx, processID)
}

func (r *PersistentWorkItemRepository) UpdateToPrepared(ctx context.Context, w *domain.WorkItem) error {
	if err := r.db.UpdateWorkItemToPrepared(ctx, w); err != nil {
		return fmt.Errorf("db update work item to prepared: %w", err)
	}
	_ = r.mem.UpdateToPrepared(ctx, w)
	return nil
}

func (r *PersistentWorkItemRepository) UpdateToGenerated(ctx context.Context, w *domain.WorkItem) error {
	if err := r.db.UpdateWorkItemToGenerated(ctx, w); err != nil {
		return fmt.Errorf("db update work item to generated: %w", err)
	}
	_ = r.mem.UpdateToGenerated(ctx, w)
	return nil
}

func (r *PersistentWorkItemRepository) UpdateToPosted(ctx context.Context, id, upstreamCommentID string) error {
	now := sql.NullTime{Time: time.Now(), Valid: true}
	if err := r.db.UpdateWorkItemToPosted(ctx, id, upstreamCommentID, now); err != nil {
		return fmt.Errorf("db update work item to posted: %w", err)
	}
	_ = r.mem.UpdateToPosted(ctx, id, upstreamCommentID)
	return nil
}

func (r *PersistentWorkItemRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	if err := r.db.MarkWorkItemFailed(ctx, id, errMsg); err != nil {
		return fmt.Errorf("db mark work item failed: %w", err)
	}
	_ = r.mem.MarkFailed(ctx, id, errMsg)
	return nil
}
