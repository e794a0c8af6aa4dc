package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/repository"
)

func newTestWorkItem(id, processID, articleID, loginID string) *domain.WorkItem {
	return &domain.WorkItem{
		ID:        id,
		ProcessID: processID,
		ArticleID: articleID,
		LoginID:   loginID,
		Status:    domain.StatusDiscovered,
	}
}

func TestMemoryWorkItemRepository_CreateRejectsDuplicateTriple(t *testing.T) {
	repo := repository.NewMemoryWorkItemRepository()
	ctx := context.Background()

	first := newTestWorkItem("item-1", "proc-1", "article-1", "login-1")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dup := newTestWorkItem("item-2", "proc-1", "article-1", "login-1")
	err := repo.Create(ctx, dup)
	if !errors.Is(err, repository.ErrDuplicateWorkItem) {
		t.Fatalf("expected ErrDuplicateWorkItem, got %v", err)
	}
}

func TestMemoryWorkItemRepository_CreateAllowsDifferentLogin(t *testing.T) {
	repo := repository.NewMemoryWorkItemRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, newTestWorkItem("item-1", "proc-1", "article-1", "login-1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, newTestWorkItem("item-2", "proc-1", "article-1", "login-2")); err != nil {
		t.Fatalf("expected distinct login to be allowed, got %v", err)
	}
}

func TestMemoryWorkItemRepository_ListByStage(t *testing.T) {
	repo := repository.NewMemoryWorkItemRepository()
	ctx := context.Background()

	a := newTestWorkItem("item-1", "proc-1", "article-1", "login-1")
	b := newTestWorkItem("item-2", "proc-1", "article-2", "login-1")
	b.Status = domain.StatusPrepared
	_ = repo.Create(ctx, a)
	_ = repo.Create(ctx, b)

	discovered, err := repo.ListByStage(ctx, "proc-1", domain.StatusDiscovered)
	if err != nil {
		t.Fatalf("ListByStage failed: %v", err)
	}
	if len(discovered) != 1 || discovered[0].ID != "item-1" {
		t.Fatalf("expected only item-1 discovered, got %v", discovered)
	}
}

func TestMemoryWorkItemRepository_MarkFailedIncrementsRetryCount(t *testing.T) {
	repo := repository.NewMemoryWorkItemRepository()
	ctx := context.Background()

	item := newTestWorkItem("item-1", "proc-1", "article-1", "login-1")
	_ = repo.Create(ctx, item)

	if err := repo.MarkFailed(ctx, "item-1", "boom"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	got, err := repo.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.StatusFailed {
		t.Errorf("expected status failed, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", got.RetryCount)
	}
	if got.ErrorMessage != "boom" {
		t.Errorf("expected error message 'boom', got %q", got.ErrorMessage)
	}
}

func TestMemoryWorkItemRepository_UpdateToPostedSetsCommentID(t *testing.T) {
	repo := repository.NewMemoryWorkItemRepository()
	ctx := context.Background()

	item := newTestWorkItem("item-1", "proc-1", "article-1", "login-1")
	_ = repo.Create(ctx, item)

	if err := repo.UpdateToPosted(ctx, "item-1", "comment-42"); err != nil {
		t.Fatalf("UpdateToPosted failed: %v", err)
	}

	got, _ := repo.Get(ctx, "item-1")
	if got.Status != domain.StatusPosted {
		t.Errorf("expected status posted, got %s", got.Status)
	}
	if got.UpstreamCommentID != "comment-42" {
		t.Errorf("expected comment id 'comment-42', got %q", got.UpstreamCommentID)
	}
	if got.PostedAt == nil {
		t.Error("expected PostedAt to be set")
	}
}
