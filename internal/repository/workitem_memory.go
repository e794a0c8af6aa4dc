package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	memstore "github.com/fgrng/yourmoment/internal/repository/memory"

	"github.com/fgrng/yourmoment/internal/domain"
)

// MemoryWorkItemRepository implements WorkItemRepository in-memory.
type MemoryWorkItemRepository struct {
	store *memstore.Store[*domain.WorkItem]
}

func NewMemoryWorkItemRepository() *MemoryWorkItemRepository {
	return &MemoryWorkItemRepository{
		store: memstore.New(func(w *domain.WorkItem) string { return w.ID }),
	}
}

func (r *MemoryWorkItemRepository) Create(ctx context.Context, w *domain.WorkItem) error {
	existing, _ := r.store.Filter(ctx, func(o *domain.WorkItem) bool {
		return o.ProcessID == w.ProcessID && o.ArticleID == w.ArticleID && o.LoginID == w.LoginID
	})
	if len(existing) > 0 {
		return ErrDuplicateWorkItem
	}
	return r.store.Set(ctx, w)
}

func (r *MemoryWorkItemRepository) Get(ctx context.Context, id string) (*domain.WorkItem, error) {
	w, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, fmt.Errorf("work item %q not found: %w", id, ErrNotFound)
	}
	return w, err
}

func (r *MemoryWorkItemRepository) ListByStage(ctx context.Context, processID string, status domain.WorkItemStatus) ([]*domain.WorkItem, error) {
	return r.store.Filter(ctx, func(w *domain.WorkItem) bool {
		return w.ProcessID == processID && w.Status == status
	})
}

func (r *MemoryWorkItemRepository) CountByStatus(ctx context.Context, processID string) (map[domain.WorkItemStatus]int, error) {
	items, err := r.store.Filter(ctx, func(w *domain.WorkItem) bool { return w.ProcessID == processID })
	if err != nil {
		return nil, err
	}
	counts := map[domain.WorkItemStatus]int{}
	for _, w := range items {
		counts[w.Status]++
	}
	return counts, nil
}

func (r *MemoryWorkItemRepository) UpdateToPrepared(ctx context.Context, w *domain.WorkItem) error {
	w.Status = domain.StatusPrepared
	return r.store.Set(ctx, w)
}

func (r *MemoryWorkItemRepository) UpdateToGenerated(ctx context.Context, w *domain.WorkItem) error {
	w.Status = domain.StatusGenerated
	return r.store.Set(ctx, w)
}

func (r *MemoryWorkItemRepository) UpdateToPosted(ctx context.Context, id, upstreamCommentID string) error {
	w, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	w.UpstreamCommentID = upstreamCommentID
	w.Status = domain.StatusPosted
	now := time.Now()
	w.PostedAt = &now
	return r.store.Set(ctx, w)
}

func (r *MemoryWorkItemRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	w, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	w.Status = domain.StatusFailed
	w.ErrorMessage = errMsg
	w.RetryCount++
	now := time.Now()
	w.FailedAt = &now
	return r.store.Set(ctx, w)
}
