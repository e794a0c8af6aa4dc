package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fgrng/yourmoment/internal/control"
	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/repository"
)

func newTestServer(t *testing.T) (*Server, repository.ProcessRepository) {
	t.Helper()
	processes := repository.NewMemoryProcessRepository()
	logins := repository.NewMemoryUpstreamLoginRepository()
	templates := repository.NewMemoryPromptTemplateRepository()
	providers := repository.NewMemoryLLMProviderConfigRepository()

	logins.Create(context.Background(), &domain.UpstreamLogin{ID: "login-1"})
	templates.Create(context.Background(), &domain.PromptTemplate{ID: "tmpl-1"})
	providers.Create(context.Background(), &domain.LLMProviderConfig{ID: "provcfg-1"})

	svc := control.NewService(processes, logins, templates, providers)
	return NewServer(svc, 1440), processes
}

func TestServer_StartProcess_Success(t *testing.T) {
	srv, processes := newTestServer(t)
	processes.Create(context.Background(), &domain.Process{
		ID: "proc-1", LoginIDs: []string{"login-1"}, PromptTemplateIDs: []string{"tmpl-1"},
		LLMProviderConfigID: "provcfg-1", MaxDurationMinutes: 30,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/processes/proc-1/start", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_StartProcess_ValidationFailureReturns400(t *testing.T) {
	srv, processes := newTestServer(t)
	processes.Create(context.Background(), &domain.Process{ID: "proc-1"})

	req := httptest.NewRequest(http.MethodPost, "/api/processes/proc-1/start", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_StopProcess(t *testing.T) {
	srv, processes := newTestServer(t)
	processes.Create(context.Background(), &domain.Process{ID: "proc-1", Status: domain.ProcessRunning})

	req := httptest.NewRequest(http.MethodPost, "/api/processes/proc-1/stop", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	p, _ := processes.Get(context.Background(), "proc-1")
	if p.Status != domain.ProcessStopped {
		t.Errorf("expected process stopped, got %v", p.Status)
	}
}
