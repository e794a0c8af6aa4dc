package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/repository"
)

const preparationDetailFixture = `
<html><body>
<h1>Der Zirkus kommt von Noah</h1>
<div class="article">
  <div class="highlight-target">
    <p>Die Artisten jonglieren.</p>
  </div>
</div>
<form action="/article/201/comment/" method="post">
  <input type="hidden" name="csrfmiddlewaretoken" value="csrf-token">
</form>
</body></html>
`

func TestPreparationWorker_AdvancesDiscoveredItems(t *testing.T) {
	reg, server := newTestRegistryAndServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(preparationDetailFixture))
	})
	defer server.Close()

	logins := repository.NewMemoryUpstreamLoginRepository()
	logins.Create(context.Background(), &domain.UpstreamLogin{ID: "login-1", OwnerID: "user-1"})

	items := repository.NewMemoryWorkItemRepository()
	item := &domain.WorkItem{ID: "witem-1", ProcessID: "proc-1", LoginID: "login-1", ArticleID: "201", Status: domain.StatusDiscovered}
	items.Create(context.Background(), item)

	// Mark the session authenticated up front, same as the article package
	// tests: the redirect/login flow is exercised separately.
	reg.Session("login-1").IsAuthenticated = true

	worker := NewPreparationWorker(reg, logins, items, noopVault(t))
	process := &domain.Process{ID: "proc-1"}

	result, err := worker.Run(context.Background(), process)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Advanced != 1 || result.Status != StatusSuccess {
		t.Fatalf("unexpected result: %+v", result)
	}

	prepared, err := items.ListByStage(context.Background(), "proc-1", domain.StatusPrepared)
	if err != nil || len(prepared) != 1 {
		t.Fatalf("expected 1 prepared item, got %v, err=%v", prepared, err)
	}
	if prepared[0].ContentText != "Die Artisten jonglieren." {
		t.Errorf("ContentText = %q", prepared[0].ContentText)
	}
	if prepared[0].ScrapedAt == nil {
		t.Error("expected ScrapedAt to be set")
	}
}

func TestPreparationWorker_NoDiscoveredItemsIsNoop(t *testing.T) {
	logins := repository.NewMemoryUpstreamLoginRepository()
	items := repository.NewMemoryWorkItemRepository()
	worker := NewPreparationWorker(nil, logins, items, noopVault(t))

	result, err := worker.Run(context.Background(), &domain.Process{ID: "proc-empty"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Advanced != 0 || result.Failed != 0 || result.Status != StatusSuccess {
		t.Errorf("expected a no-op success result, got %+v", result)
	}
}

func TestPreparationWorker_ScrapeFailureMarksItemFailed(t *testing.T) {
	// A server that closes the connection immediately simulates an upstream
	// network failure (FetchArticle only treats transport errors as
	// failures; it has no opinion on HTTP status codes).
	reg, server := newTestRegistryAndServer(t, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, _, _ := hj.Hijack()
		conn.Close()
	})
	defer server.Close()
	reg.Session("login-1").IsAuthenticated = true

	logins := repository.NewMemoryUpstreamLoginRepository()
	logins.Create(context.Background(), &domain.UpstreamLogin{ID: "login-1", OwnerID: "user-1"})

	items := repository.NewMemoryWorkItemRepository()
	items.Create(context.Background(), &domain.WorkItem{ID: "witem-1", ProcessID: "proc-1", LoginID: "login-1", ArticleID: "201", Status: domain.StatusDiscovered})

	worker := NewPreparationWorker(reg, logins, items, noopVault(t))
	result, err := worker.Run(context.Background(), &domain.Process{ID: "proc-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 || result.Status != StatusPartial {
		t.Fatalf("unexpected result: %+v", result)
	}

	failed, _ := items.Get(context.Background(), "witem-1")
	if failed.Status != domain.StatusFailed {
		t.Errorf("expected item to be marked failed, got %v", failed.Status)
	}
}
