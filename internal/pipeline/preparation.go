package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fgrng/yourmoment/internal/crypto"
	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/repository"
	"github.com/fgrng/yourmoment/internal/scraper"
)

// maxConcurrentFetches bounds how many articles are fetched in parallel
// per Preparation run, independent of how many logins a process has.
const maxConcurrentFetches = 4

// PreparationWorker fetches the full article snapshot for every discovered
// WorkItem and advances it to prepared.
type PreparationWorker struct {
	Sessions *scraper.Registry
	Logins   repository.UpstreamLoginRepository
	Items    repository.WorkItemRepository
	Vault    *crypto.Vault
}

func NewPreparationWorker(sessions *scraper.Registry, logins repository.UpstreamLoginRepository, items repository.WorkItemRepository, vault *crypto.Vault) *PreparationWorker {
	return &PreparationWorker{Sessions: sessions, Logins: logins, Items: items, Vault: vault}
}

func (w *PreparationWorker) Run(ctx context.Context, process *domain.Process) (Result, error) {
	start := time.Now()

	items, err := w.Items.ListByStage(ctx, process.ID, domain.StatusDiscovered)
	if err != nil {
		return failedResult(fmt.Errorf("list discovered items: %w", err), start), nil
	}
	if len(items) == 0 {
		return newResult(0, 0, nil, start), nil
	}

	var advanced, failed int
	var errs []string
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := w.prepareOne(gCtx, item); err != nil {
				mu.Lock()
				failed++
				errs = append(errs, fmt.Sprintf("item %s: %v", item.ID, err))
				mu.Unlock()
				if markErr := w.Items.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
					mu.Lock()
					errs = append(errs, fmt.Sprintf("item %s: mark failed: %v", item.ID, markErr))
					mu.Unlock()
				}
				return nil
			}
			mu.Lock()
			advanced++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // per-item errors are recorded above, not propagated

	return newResult(advanced, failed, errs, start), nil
}

func (w *PreparationWorker) prepareOne(ctx context.Context, item *domain.WorkItem) error {
	login, err := w.Logins.Get(ctx, item.LoginID)
	if err != nil {
		return fmt.Errorf("load login: %w", err)
	}

	session := w.Sessions.Session(login.ID)
	if !session.IsAuthenticated {
		username, err := w.Vault.Decrypt(login.EncryptedUsername)
		if err != nil {
			return fmt.Errorf("%w: decrypt username: %v", ErrAuthentication, err)
		}
		password, err := w.Vault.Decrypt(login.EncryptedPassword)
		if err != nil {
			return fmt.Errorf("%w: decrypt password: %v", ErrAuthentication, err)
		}
		if err := session.Login(ctx, scraper.Credentials{Username: username, Password: password}); err != nil {
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
	}

	detail, err := session.FetchArticle(ctx, item.ArticleID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScraping, err)
	}

	item.Title = detail.Title
	item.Author = detail.Author
	// Keep whatever Discovery already resolved from a server-side filter if
	// the detail page itself doesn't carry a Kategorie/Aufgabe entry.
	if detail.CategoryID != nil {
		item.CategoryID = detail.CategoryID
	}
	if detail.TaskID != nil {
		item.TaskID = detail.TaskID
	}
	item.ContentText = detail.ContentText
	item.ContentHTML = detail.ContentHTML
	now := time.Now()
	item.ScrapedAt = &now

	if err := w.Items.UpdateToPrepared(ctx, item); err != nil {
		return fmt.Errorf("update to prepared: %w", err)
	}
	return nil
}
