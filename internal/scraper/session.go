// Package scraper implements the upstream session registry: per-login
// authenticated HTTP sessions against the myMoment platform, article
// discovery/fetch/post operations, and the rate limiter and redirect
// sanitation those operations depend on.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Credentials is the decrypted username/password pair used to log in. It
// never leaves the registry.
type Credentials struct {
	Username string
	Password string
}

// Session is one authenticated HTTP session for a single upstream login.
type Session struct {
	LoginID         string
	Username        string
	IsAuthenticated bool
	LastActivityAt  time.Time

	client      *http.Client
	baseURL     *url.URL
	csrfToken   string
	rateLimiter *RateLimiter
	mu          sync.Mutex
}

// Registry is the in-process map of login_id to Session, the sole owner
// of cookie jars and CSRF tokens for the upstream platform.
type Registry struct {
	baseURL     *url.URL
	timeout     time.Duration
	rateLimiter *RateLimiter

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a Registry pointed at baseURL, sharing a single
// RateLimiter across all sessions (the rate limit is process-wide, not
// per-login).
func NewRegistry(baseURL string, timeout time.Duration, rateLimiter *RateLimiter) (*Registry, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Registry{
		baseURL:     u,
		timeout:     timeout,
		rateLimiter: rateLimiter,
		sessions:    make(map[string]*Session),
	}, nil
}

// Session returns the existing session for loginID, creating one on
// demand if absent.
func (r *Registry) Session(loginID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[loginID]; ok {
		return s
	}

	jar, _ := cookiejar.New(nil)
	s := &Session{
		LoginID: loginID,
		client: &http.Client{
			Timeout: r.timeout,
			Jar:     jar,
			// Redirects are followed manually (see redirect.go) because
			// the Location header must be sanitized before resolution.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL:     r.baseURL,
		rateLimiter: r.rateLimiter,
	}
	r.sessions[loginID] = s
	return s
}

// Close tears down the HTTP resources for a login's session. The
// encrypted credentials, held elsewhere in the vault, are unaffected.
func (r *Registry) Close(loginID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, loginID)
}

// CloseAll tears down every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*Session)
}

func (s *Session) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return s.baseURL.String() + path
	}
	return s.baseURL.ResolveReference(ref).String()
}

// do performs an HTTP request through the rate limiter and the session's
// own redirect loop.
func (s *Session) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*goquery.Document, *http.Response, error) {
	s.rateLimiter.Wait()

	var bodyBytes []byte
	if body != nil {
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, nil, fmt.Errorf("read request body: %w", err)
		}
		bodyBytes = b
	}

	req, err := http.NewRequestWithContext(ctx, method, s.resolve(path), bodyReaderOrNil(bodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	resp, err = s.followRedirects(req, bodyBytes, resp)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, resp, fmt.Errorf("parse html: %w", err)
	}
	return doc, resp, nil
}

func bodyReaderOrNil(b []byte) io.Reader {
	if b == nil {
		return nil
	}
	return strings.NewReader(string(b))
}

// Login authenticates the session against the upstream platform. A
// session is authenticated iff the resulting home page contains a logout
// form whose action is exactly "/accounts/logout/".
func (s *Session) Login(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loginDoc, _, err := s.do(ctx, http.MethodGet, "/accounts/login/", nil, nil)
	if err != nil {
		return fmt.Errorf("fetch login form: %w", err)
	}

	csrf, ok := loginDoc.Find(`input[name="csrfmiddlewaretoken"]`).First().Attr("value")
	if !ok || csrf == "" {
		return fmt.Errorf("login form missing csrfmiddlewaretoken")
	}

	form := url.Values{}
	form.Set("csrfmiddlewaretoken", csrf)
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)
	form.Set("next", "/")

	homeDoc, _, err := s.do(ctx, http.MethodPost, "/accounts/login/", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Referer":      s.resolve("/accounts/login/"),
	})
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	logoutAction, ok := homeDoc.Find(`form[action="/accounts/logout/"]`).Attr("action")
	if !ok || logoutAction != "/accounts/logout/" {
		s.IsAuthenticated = false
		return fmt.Errorf("%w: %s", ErrAuthentication, "login did not establish an authenticated session")
	}

	s.IsAuthenticated = true
	s.Username = creds.Username
	s.LastActivityAt = time.Now()
	return nil
}
