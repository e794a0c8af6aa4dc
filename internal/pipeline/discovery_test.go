package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fgrng/yourmoment/internal/crypto"
	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/repository"
	"github.com/fgrng/yourmoment/internal/scraper"
)

const discoveryIndexFixture = `
<html><body>
<div id="pills-home">
  <div class="col-xl-4 mb-4">
    <div class="card">
      <div class="card-header publiziert">Publiziert</div>
      <a href="/article/201/">
        <div class="article-title">Der Zirkus kommt</div>
      </a>
      <div class="article-author">Noah</div>
    </div>
  </div>
</div>
</body></html>
`

const loginHomeFixture = `
<html><body>
<form action="/accounts/logout/" method="post">submit</form>
</body></html>
`

const loginFormFixtureForPipeline = `
<html><body>
<form action="/accounts/login/" method="post">
  <input type="hidden" name="csrfmiddlewaretoken" value="csrf">
</form>
</body></html>
`

func newTestRegistryAndServer(t *testing.T, handler http.HandlerFunc) (*scraper.Registry, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	reg, err := scraper.NewRegistry(server.URL, 5*time.Second, scraper.NewRateLimiter(1000))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg, server
}

func noopVault(t *testing.T) *crypto.Vault {
	t.Helper()
	v, err := crypto.NewVault(nil)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	return v
}

func TestDiscoveryWorker_CreatesOneItemPerArticle(t *testing.T) {
	reg, server := newTestRegistryAndServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/accounts/login/":
			w.Write([]byte(loginFormFixtureForPipeline))
		case r.Method == http.MethodPost && r.URL.Path == "/accounts/login/":
			w.Write([]byte(loginHomeFixture))
		default:
			w.Write([]byte(discoveryIndexFixture))
		}
	})
	defer server.Close()

	logins := repository.NewMemoryUpstreamLoginRepository()
	login := &domain.UpstreamLogin{ID: "login-1", OwnerID: "user-1", EncryptedUsername: "mia", EncryptedPassword: "secret", IsActive: true}
	logins.Create(context.Background(), login)

	items := repository.NewMemoryWorkItemRepository()
	worker := NewDiscoveryWorker(reg, logins, items, noopVault(t))

	process := &domain.Process{ID: "proc-1", OwnerID: "user-1", LoginIDs: []string{"login-1"}}

	result, err := worker.Run(context.Background(), process)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Advanced != 1 {
		t.Fatalf("expected 1 advanced, got %+v", result)
	}
	if result.Status != StatusSuccess {
		t.Errorf("expected success status, got %v", result.Status)
	}

	stored, err := items.ListByStage(context.Background(), "proc-1", domain.StatusDiscovered)
	if err != nil {
		t.Fatalf("ListByStage: %v", err)
	}
	if len(stored) != 1 || stored[0].ArticleID != "201" {
		t.Fatalf("unexpected stored items: %+v", stored)
	}
}

func TestDiscoveryWorker_DuplicateRunIsIdempotent(t *testing.T) {
	reg, server := newTestRegistryAndServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/accounts/login/":
			w.Write([]byte(loginFormFixtureForPipeline))
		case r.Method == http.MethodPost && r.URL.Path == "/accounts/login/":
			w.Write([]byte(loginHomeFixture))
		default:
			w.Write([]byte(discoveryIndexFixture))
		}
	})
	defer server.Close()

	logins := repository.NewMemoryUpstreamLoginRepository()
	logins.Create(context.Background(), &domain.UpstreamLogin{ID: "login-1", OwnerID: "user-1"})

	items := repository.NewMemoryWorkItemRepository()
	worker := NewDiscoveryWorker(reg, logins, items, noopVault(t))
	process := &domain.Process{ID: "proc-1", OwnerID: "user-1", LoginIDs: []string{"login-1"}}

	if _, err := worker.Run(context.Background(), process); err != nil {
		t.Fatalf("first run: %v", err)
	}
	result, err := worker.Run(context.Background(), process)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Advanced != 0 {
		t.Errorf("expected duplicate run to advance 0 items, got %d", result.Advanced)
	}

	stored, _ := items.ListByStage(context.Background(), "proc-1", domain.StatusDiscovered)
	if len(stored) != 1 {
		t.Fatalf("expected exactly one stored item after duplicate discovery, got %d", len(stored))
	}
}

func TestDiscoveryWorker_MultiLoginFanout(t *testing.T) {
	reg, server := newTestRegistryAndServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/accounts/login/":
			w.Write([]byte(loginFormFixtureForPipeline))
		case r.Method == http.MethodPost && r.URL.Path == "/accounts/login/":
			w.Write([]byte(loginHomeFixture))
		default:
			w.Write([]byte(discoveryIndexFixture))
		}
	})
	defer server.Close()

	logins := repository.NewMemoryUpstreamLoginRepository()
	logins.Create(context.Background(), &domain.UpstreamLogin{ID: "login-1", OwnerID: "user-1"})
	logins.Create(context.Background(), &domain.UpstreamLogin{ID: "login-2", OwnerID: "user-1"})

	items := repository.NewMemoryWorkItemRepository()
	worker := NewDiscoveryWorker(reg, logins, items, noopVault(t))
	process := &domain.Process{ID: "proc-1", OwnerID: "user-1", LoginIDs: []string{"login-1", "login-2"}}

	result, err := worker.Run(context.Background(), process)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Advanced != 2 {
		t.Fatalf("expected 2 work items (one per login), got %+v", result)
	}
}

func TestDiscoveryWorker_RequiresAtLeastOneLogin(t *testing.T) {
	items := repository.NewMemoryWorkItemRepository()
	logins := repository.NewMemoryUpstreamLoginRepository()
	worker := NewDiscoveryWorker(nil, logins, items, noopVault(t))
	process := &domain.Process{ID: "proc-1", OwnerID: "user-1"}

	result, err := worker.Run(context.Background(), process)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("expected failed status for a process with no logins, got %v", result.Status)
	}
}
