package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fgrng/yourmoment/internal/crypto"
	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/repository"
	"github.com/fgrng/yourmoment/internal/scraper"
)

// PostingWorker submits every generated WorkItem's comment through its
// login's session and advances it to posted.
type PostingWorker struct {
	Sessions *scraper.Registry
	Logins   repository.UpstreamLoginRepository
	Items    repository.WorkItemRepository
	Vault    *crypto.Vault
}

func NewPostingWorker(sessions *scraper.Registry, logins repository.UpstreamLoginRepository, items repository.WorkItemRepository, vault *crypto.Vault) *PostingWorker {
	return &PostingWorker{Sessions: sessions, Logins: logins, Items: items, Vault: vault}
}

func (w *PostingWorker) Run(ctx context.Context, process *domain.Process) (Result, error) {
	start := time.Now()

	if process.GenerateOnly {
		return newResult(0, 0, nil, start), nil
	}

	items, err := w.Items.ListByStage(ctx, process.ID, domain.StatusGenerated)
	if err != nil {
		return failedResult(fmt.Errorf("list generated items: %w", err), start), nil
	}
	if len(items) == 0 {
		return newResult(0, 0, nil, start), nil
	}

	byLogin := make(map[string][]*domain.WorkItem)
	for _, item := range items {
		byLogin[item.LoginID] = append(byLogin[item.LoginID], item)
	}

	var advanced, failed int
	var errs []string

	for loginID, loginItems := range byLogin {
		session, err := w.authenticatedSession(ctx, loginID)
		if err != nil {
			for _, item := range loginItems {
				failed++
				errs = append(errs, fmt.Sprintf("item %s: %v", item.ID, err))
				w.Items.MarkFailed(ctx, item.ID, err.Error())
			}
			continue
		}

		for _, item := range loginItems {
			if err := w.postOne(ctx, session, item); err != nil {
				failed++
				errs = append(errs, fmt.Sprintf("item %s: %v", item.ID, err))
				if markErr := w.Items.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
					errs = append(errs, fmt.Sprintf("item %s: mark failed: %v", item.ID, markErr))
				}
				continue
			}
			advanced++
		}
	}

	return newResult(advanced, failed, errs, start), nil
}

func (w *PostingWorker) authenticatedSession(ctx context.Context, loginID string) (*scraper.Session, error) {
	login, err := w.Logins.Get(ctx, loginID)
	if err != nil {
		return nil, fmt.Errorf("load login: %w", err)
	}

	session := w.Sessions.Session(login.ID)
	if session.IsAuthenticated {
		return session, nil
	}

	username, err := w.Vault.Decrypt(login.EncryptedUsername)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt username: %v", ErrAuthentication, err)
	}
	password, err := w.Vault.Decrypt(login.EncryptedPassword)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt password: %v", ErrAuthentication, err)
	}
	if err := session.Login(ctx, scraper.Credentials{Username: username, Password: password}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return session, nil
}

func (w *PostingWorker) postOne(ctx context.Context, session *scraper.Session, item *domain.WorkItem) error {
	// The comment form's CSRF token is tied to the current page render, not
	// to the item snapshot taken during Preparation, so it is re-fetched
	// immediately before posting.
	detail, err := session.FetchArticle(ctx, item.ArticleID)
	if err != nil {
		return fmt.Errorf("%w: refetch for comment CSRF: %v", ErrScraping, err)
	}

	if err := session.PostComment(ctx, item.ArticleID, detail.CommentCSRF, item.CommentText, "", false); err != nil {
		return fmt.Errorf("%w: %v", ErrScraping, err)
	}

	commentID := syntheticCommentID(item.ArticleID, item.ID)
	if err := w.Items.UpdateToPosted(ctx, item.ID, commentID); err != nil {
		return fmt.Errorf("update to posted: %w", err)
	}
	return nil
}

// syntheticCommentID builds a stand-in upstream comment id, since the
// upstream platform does not return one: {article_id}-{unix_seconds}-{item_id_prefix8}.
func syntheticCommentID(articleID, itemID string) string {
	prefix := itemID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return articleID + "-" + strconv.FormatInt(time.Now().Unix(), 10) + "-" + prefix
}
