package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fgrng/yourmoment/internal/domain"
)

// ErrDuplicateWorkItem is returned when an insert would violate the
// (process_id, article_id, login_id) uniqueness constraint — the sole
// cross-worker synchronization point for at-most-once posting.
var ErrDuplicateWorkItem = fmt.Errorf("work item already exists for this process/article/login")

// CreateWorkItem inserts a newly discovered work item. It returns
// ErrDuplicateWorkItem if one already exists for the same
// (process_id, article_id, login_id) triple.
func (d *DB) CreateWorkItem(ctx context.Context, w *domain.WorkItem) error {
	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO work_items (
			id, process_id, login_id, user_id, article_id, upstream_comment_id,
			prompt_template_id, llm_provider_id,
			title, author, category_id, task_id, url, content_text, content_html,
			published_at, edited_at, scraped_at,
			comment_text, llm_model_name, llm_provider_name, generation_tokens, generation_time_ms,
			status, created_at, posted_at, failed_at, error_message, retry_count
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8,
			$9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21, $22, $23,
			$24, $25, $26, $27, $28, $29
		)`,
		w.ID, w.ProcessID, w.LoginID, w.UserID, w.ArticleID, w.UpstreamCommentID,
		w.PromptTemplateID, w.LLMProviderID,
		w.Title, w.Author, w.CategoryID, w.TaskID, w.URL, w.ContentText, w.ContentHTML,
		w.PublishedAt, w.EditedAt, w.ScrapedAt,
		w.CommentText, w.LLMModelName, w.LLMProviderName, w.GenerationTokens, w.GenerationTimeMs,
		w.Status, w.CreatedAt, w.PostedAt, w.FailedAt, w.ErrorMessage, w.RetryCount,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateWorkItem
		}
		return fmt.Errorf("insert work item: %w", err)
	}
	return nil
}

const workItemColumns = `
	id, process_id, login_id, user_id, article_id, upstream_comment_id,
	prompt_template_id, llm_provider_id,
	title, author, category_id, task_id, url, content_text, content_html,
	published_at, edited_at, scraped_at,
	comment_text, llm_model_name, llm_provider_name, generation_tokens, generation_time_ms,
	status, created_at, posted_at, failed_at, error_message, retry_count
`

func scanWorkItem(row interface {
	Scan(dest ...any) error
}) (*domain.WorkItem, error) {
	var w domain.WorkItem
	err := row.Scan(
		&w.ID, &w.ProcessID, &w.LoginID, &w.UserID, &w.ArticleID, &w.UpstreamCommentID,
		&w.PromptTemplateID, &w.LLMProviderID,
		&w.Title, &w.Author, &w.CategoryID, &w.TaskID, &w.URL, &w.ContentText, &w.ContentHTML,
		&w.PublishedAt, &w.EditedAt, &w.ScrapedAt,
		&w.CommentText, &w.LLMModelName, &w.LLMProviderName, &w.GenerationTokens, &w.GenerationTimeMs,
		&w.Status, &w.CreatedAt, &w.PostedAt, &w.FailedAt, &w.ErrorMessage, &w.RetryCount,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWorkItem retrieves a work item by ID.
func (d *DB) GetWorkItem(ctx context.Context, id string) (*domain.WorkItem, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+workItemColumns+` FROM work_items WHERE id = $1`, id)
	w, err := scanWorkItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("work item %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return w, nil
}

// ListWorkItemsByStage returns all work items for a process in a given
// status, ordered by created_at ascending (oldest first).
func (d *DB) ListWorkItemsByStage(ctx context.Context, processID string, status domain.WorkItemStatus) ([]*domain.WorkItem, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+workItemColumns+` FROM work_items
		 WHERE process_id = $1 AND status = $2
		 ORDER BY created_at ASC`,
		processID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var result []*domain.WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate work items: %w", err)
	}
	return result, nil
}

// CountWorkItemsByStatus returns counts of work items per status for a process.
func (d *DB) CountWorkItemsByStatus(ctx context.Context, processID string) (map[domain.WorkItemStatus]int, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM work_items WHERE process_id = $1 GROUP BY status`,
		processID,
	)
	if err != nil {
		return nil, fmt.Errorf("count work items: %w", err)
	}
	defer rows.Close()

	result := map[domain.WorkItemStatus]int{}
	for rows.Next() {
		var status domain.WorkItemStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		result[status] = count
	}
	return result, rows.Err()
}

// UpdateWorkItemToPrepared writes the article snapshot and advances status
// to "prepared".
func (d *DB) UpdateWorkItemToPrepared(ctx context.Context, w *domain.WorkItem) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE work_items SET
			title = $1, author = $2, category_id = $3, task_id = $4, url = $5,
			content_text = $6, content_html = $7, published_at = $8, edited_at = $9,
			scraped_at = $10, status = $11
		 WHERE id = $12`,
		w.Title, w.Author, w.CategoryID, w.TaskID, w.URL,
		w.ContentText, w.ContentHTML, w.PublishedAt, w.EditedAt,
		w.ScrapedAt, domain.StatusPrepared, w.ID,
	)
	return checkRowsAffected(res, err, "work item", w.ID)
}

// UpdateWorkItemToGenerated writes the generated comment and advances
// status to "generated".
func (d *DB) UpdateWorkItemToGenerated(ctx context.Context, w *domain.WorkItem) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE work_items SET
			comment_text = $1, llm_model_name = $2, llm_provider_name = $3,
			generation_tokens = $4, generation_time_ms = $5, prompt_template_id = $6,
			llm_provider_id = $7, status = $8
		 WHERE id = $9`,
		w.CommentText, w.LLMModelName, w.LLMProviderName,
		w.GenerationTokens, w.GenerationTimeMs, w.PromptTemplateID,
		w.LLMProviderID, domain.StatusGenerated, w.ID,
	)
	return checkRowsAffected(res, err, "work item", w.ID)
}

// UpdateWorkItemToPosted records the upstream comment id and advances
// status to "posted".
func (d *DB) UpdateWorkItemToPosted(ctx context.Context, id, upstreamCommentID string, postedAt sql.NullTime) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE work_items SET upstream_comment_id = $1, posted_at = $2, status = $3 WHERE id = $4`,
		upstreamCommentID, postedAt, domain.StatusPosted, id,
	)
	return checkRowsAffected(res, err, "work item", id)
}

// MarkWorkItemFailed records an error and advances status to "failed",
// incrementing retry_count.
func (d *DB) MarkWorkItemFailed(ctx context.Context, id, errMsg string) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE work_items SET status = $1, error_message = $2, failed_at = NOW(), retry_count = retry_count + 1
		 WHERE id = $3`,
		domain.StatusFailed, errMsg, id,
	)
	return checkRowsAffected(res, err, "work item", id)
}

func checkRowsAffected(res sql.Result, err error, entity, id string) error {
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s %q not found", entity, id)
	}
	return nil
}
