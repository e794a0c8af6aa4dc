package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fgrng/yourmoment/internal/crypto"
	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/repository"
	"github.com/fgrng/yourmoment/internal/scraper"
)

const defaultDiscoveryLimit = 20

// DiscoveryWorker logs into every login attached to a process, lists
// articles matching the process's filter, and records one WorkItem per
// (article, login) pair it has not seen before.
type DiscoveryWorker struct {
	Sessions *scraper.Registry
	Logins   repository.UpstreamLoginRepository
	Items    repository.WorkItemRepository
	Vault    *crypto.Vault
	Limit    int
}

func NewDiscoveryWorker(sessions *scraper.Registry, logins repository.UpstreamLoginRepository, items repository.WorkItemRepository, vault *crypto.Vault) *DiscoveryWorker {
	return &DiscoveryWorker{Sessions: sessions, Logins: logins, Items: items, Vault: vault, Limit: defaultDiscoveryLimit}
}

func (w *DiscoveryWorker) Run(ctx context.Context, process *domain.Process) (Result, error) {
	start := time.Now()

	if len(process.LoginIDs) == 0 {
		return failedResult(fmt.Errorf("%w: process has no attached logins", ErrValidation), start), nil
	}

	limit := w.Limit
	if limit <= 0 {
		limit = defaultDiscoveryLimit
	}

	var advanced, failed int
	var errs []string

	for _, loginID := range process.LoginIDs {
		summaries, login, err := w.discoverForLogin(ctx, loginID, process.Filter, limit)
		if err != nil {
			failed++
			errs = append(errs, fmt.Sprintf("login %s: %v", loginID, err))
			continue
		}

		// Category and task ids cannot be read reliably off the index
		// cards; when the process filters by one server-side, the filter
		// value itself is the id, so it carries straight onto the item.
		// Otherwise both stay nil until Preparation reads the detail page.
		categoryID := scraper.CategoryIDFromQuery(process.Filter.Category)
		taskID := scraper.TaskIDFromQuery(process.Filter.Task)

		for _, summary := range summaries {
			item := &domain.WorkItem{
				ID:         domain.NewID("witem"),
				ProcessID:  process.ID,
				LoginID:    login.ID,
				UserID:     process.OwnerID,
				ArticleID:  summary.ID,
				Title:      summary.Title,
				Author:     summary.Author,
				URL:        summary.URL,
				CategoryID: categoryID,
				TaskID:     taskID,
				Status:     domain.StatusDiscovered,
				CreatedAt:  time.Now(),
			}
			if err := w.Items.Create(ctx, item); err != nil {
				if errors.Is(err, repository.ErrDuplicateWorkItem) {
					continue
				}
				failed++
				errs = append(errs, fmt.Sprintf("article %s/login %s: %v", summary.ID, login.ID, err))
				continue
			}
			advanced++
		}
	}

	return newResult(advanced, failed, errs, start), nil
}

// discoverForLogin authenticates the given login (if needed) and lists
// matching articles through its session.
func (w *DiscoveryWorker) discoverForLogin(ctx context.Context, loginID string, filter domain.ArticleFilter, limit int) ([]scraper.ArticleSummary, *domain.UpstreamLogin, error) {
	login, err := w.Logins.Get(ctx, loginID)
	if err != nil {
		return nil, nil, fmt.Errorf("load login: %w", err)
	}

	session := w.Sessions.Session(login.ID)
	if !session.IsAuthenticated {
		username, err := w.Vault.Decrypt(login.EncryptedUsername)
		if err != nil {
			return nil, login, fmt.Errorf("%w: decrypt username: %v", ErrAuthentication, err)
		}
		password, err := w.Vault.Decrypt(login.EncryptedPassword)
		if err != nil {
			return nil, login, fmt.Errorf("%w: decrypt password: %v", ErrAuthentication, err)
		}
		if err := session.Login(ctx, scraper.Credentials{Username: username, Password: password}); err != nil {
			return nil, login, fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
	}

	summaries, err := session.DiscoverArticles(ctx, filter, limit)
	if err != nil {
		return nil, login, fmt.Errorf("%w: %v", ErrScraping, err)
	}

	w.Logins.Touch(ctx, login.ID)
	return summaries, login, nil
}
