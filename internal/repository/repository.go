// Package repository adapts the domain entities to storage. Each entity
// has a Memory implementation (in-process, used standalone or as a
// read-through cache) and a Persistent implementation wrapping it with a
// PostgreSQL backend: writes go to both. Get tries memory first and falls
// back to the database on miss; list and count reads query the database
// first and fall back to memory only when the database call fails.
package repository

import (
	"context"
	"errors"

	"github.com/fgrng/yourmoment/internal/domain"
)

// ErrDuplicateWorkItem is returned by WorkItemRepository.Create when a
// work item already exists for the same (process_id, article_id,
// login_id) triple — the sole cross-worker synchronization point for
// at-most-once posting.
var ErrDuplicateWorkItem = errors.New("work item already exists for this process/article/login")

// ErrNotFound is returned when an entity with the given id is absent.
var ErrNotFound = errors.New("not found")

// WorkItemRepository stores WorkItem records.
type WorkItemRepository interface {
	Create(ctx context.Context, w *domain.WorkItem) error
	Get(ctx context.Context, id string) (*domain.WorkItem, error)
	ListByStage(ctx context.Context, processID string, status domain.WorkItemStatus) ([]*domain.WorkItem, error)
	CountByStatus(ctx context.Context, processID string) (map[domain.WorkItemStatus]int, error)
	UpdateToPrepared(ctx context.Context, w *domain.WorkItem) error
	UpdateToGenerated(ctx context.Context, w *domain.WorkItem) error
	UpdateToPosted(ctx context.Context, id, upstreamCommentID string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
}

// ProcessRepository stores Process records.
type ProcessRepository interface {
	Create(ctx context.Context, p *domain.Process) error
	Get(ctx context.Context, id string) (*domain.Process, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Process, error)
	ListRunning(ctx context.Context) ([]*domain.Process, error)
	Update(ctx context.Context, p *domain.Process) error
	Delete(ctx context.Context, id string) error
}

// UpstreamLoginRepository stores UpstreamLogin records.
type UpstreamLoginRepository interface {
	Create(ctx context.Context, l *domain.UpstreamLogin) error
	Get(ctx context.Context, id string) (*domain.UpstreamLogin, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.UpstreamLogin, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// LLMProviderConfigRepository stores LLMProviderConfig records.
type LLMProviderConfigRepository interface {
	Create(ctx context.Context, c *domain.LLMProviderConfig) error
	Get(ctx context.Context, id string) (*domain.LLMProviderConfig, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.LLMProviderConfig, error)
	Delete(ctx context.Context, id string) error
}

// PromptTemplateRepository stores PromptTemplate records.
type PromptTemplateRepository interface {
	Create(ctx context.Context, t *domain.PromptTemplate) error
	Get(ctx context.Context, id string) (*domain.PromptTemplate, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.PromptTemplate, error)
	Delete(ctx context.Context, id string) error
}
