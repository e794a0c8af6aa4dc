package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/repository"
)

const postingDetailFixture = `
<html><body>
<h1>Windig von RockstarCondor</h1>
<div class="article highlight-target"><p>Es ist windig.</p></div>
<form action="/article/301/comment/" method="post">
  <input type="hidden" name="csrfmiddlewaretoken" value="fresh-csrf">
</form>
</body></html>
`

func TestPostingWorker_PostsGeneratedItems(t *testing.T) {
	var postedForm string
	reg, server := newTestRegistryAndServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/comment/") {
			r.ParseForm()
			postedForm = r.Form.Encode()
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte(postingDetailFixture))
	})
	defer server.Close()
	reg.Session("login-1").IsAuthenticated = true

	logins := repository.NewMemoryUpstreamLoginRepository()
	logins.Create(context.Background(), &domain.UpstreamLogin{ID: "login-1", OwnerID: "user-1"})

	items := repository.NewMemoryWorkItemRepository()
	items.Create(context.Background(), &domain.WorkItem{
		ID: "witem-1", ProcessID: "proc-1", LoginID: "login-1", ArticleID: "301",
		CommentText: "[Dieser Kommentar stammt von einem KI-ChatBot.] Mega cool!",
		Status:      domain.StatusGenerated,
	})

	worker := NewPostingWorker(reg, logins, items, noopVault(t))
	process := &domain.Process{ID: "proc-1", GenerateOnly: false}

	result, err := worker.Run(context.Background(), process)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Advanced != 1 || result.Status != StatusSuccess {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !strings.Contains(postedForm, "fresh-csrf") {
		t.Errorf("expected posted form to carry the freshly fetched CSRF token, got %q", postedForm)
	}

	posted, _ := items.Get(context.Background(), "witem-1")
	if posted.Status != domain.StatusPosted {
		t.Fatalf("expected item to be posted, got %v", posted.Status)
	}
	if posted.PostedAt == nil {
		t.Error("expected PostedAt to be set")
	}
	if !strings.HasPrefix(posted.UpstreamCommentID, "301-") {
		t.Errorf("UpstreamCommentID = %q, want prefix 301-", posted.UpstreamCommentID)
	}
}

func TestPostingWorker_GenerateOnlySkipsPosting(t *testing.T) {
	items := repository.NewMemoryWorkItemRepository()
	items.Create(context.Background(), &domain.WorkItem{
		ID: "witem-1", ProcessID: "proc-1", LoginID: "login-1", ArticleID: "301",
		CommentText: "text", Status: domain.StatusGenerated,
	})

	logins := repository.NewMemoryUpstreamLoginRepository()
	worker := NewPostingWorker(nil, logins, items, noopVault(t))

	result, err := worker.Run(context.Background(), &domain.Process{ID: "proc-1", GenerateOnly: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Advanced != 0 || result.Status != StatusSuccess {
		t.Fatalf("expected a no-op result in generate-only mode, got %+v", result)
	}

	item, _ := items.Get(context.Background(), "witem-1")
	if item.Status != domain.StatusGenerated {
		t.Errorf("expected item to remain generated, got %v", item.Status)
	}
}

func TestPostingWorker_TwoItemsSameLoginShareSession(t *testing.T) {
	var postCount int
	reg, server := newTestRegistryAndServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/comment/") {
			postCount++
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte(postingDetailFixture))
	})
	defer server.Close()
	reg.Session("login-1").IsAuthenticated = true

	logins := repository.NewMemoryUpstreamLoginRepository()
	logins.Create(context.Background(), &domain.UpstreamLogin{ID: "login-1", OwnerID: "user-1"})

	items := repository.NewMemoryWorkItemRepository()
	items.Create(context.Background(), &domain.WorkItem{ID: "witem-1", ProcessID: "proc-1", LoginID: "login-1", ArticleID: "301", CommentText: "a", Status: domain.StatusGenerated})
	items.Create(context.Background(), &domain.WorkItem{ID: "witem-2", ProcessID: "proc-1", LoginID: "login-1", ArticleID: "302", CommentText: "b", Status: domain.StatusGenerated})

	worker := NewPostingWorker(reg, logins, items, noopVault(t))
	result, err := worker.Run(context.Background(), &domain.Process{ID: "proc-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Advanced != 2 {
		t.Fatalf("expected both items posted, got %+v", result)
	}
	if postCount != 2 {
		t.Errorf("expected 2 comment posts, got %d", postCount)
	}
}
