package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fgrng/yourmoment/internal/domain"
)

// CreatePromptTemplate inserts a new prompt template.
func (d *DB) CreatePromptTemplate(ctx context.Context, t *domain.PromptTemplate) error {
	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO prompt_templates (
			id, owner_id, category, name, description, system_prompt, user_prompt_template, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.OwnerID, t.Category, t.Name, t.Description, t.SystemPrompt, t.UserPromptTemplate, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prompt template: %w", err)
	}
	return nil
}

const promptTemplateColumns = `
	id, owner_id, category, name, description, system_prompt, user_prompt_template, created_at
`

func scanPromptTemplate(row interface{ Scan(dest ...any) error }) (*domain.PromptTemplate, error) {
	var t domain.PromptTemplate
	err := row.Scan(
		&t.ID, &t.OwnerID, &t.Category, &t.Name, &t.Description, &t.SystemPrompt, &t.UserPromptTemplate, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetPromptTemplate retrieves a prompt template by ID.
func (d *DB) GetPromptTemplate(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+promptTemplateColumns+` FROM prompt_templates WHERE id = $1`, id)
	t, err := scanPromptTemplate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("prompt template %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt template: %w", err)
	}
	return t, nil
}

// ListPromptTemplatesByOwner returns system templates plus templates owned
// by ownerID.
func (d *DB) ListPromptTemplatesByOwner(ctx context.Context, ownerID string) ([]*domain.PromptTemplate, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+promptTemplateColumns+` FROM prompt_templates
		 WHERE category = $1 OR owner_id = $2
		 ORDER BY created_at ASC`,
		domain.TemplateSystem, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list prompt templates: %w", err)
	}
	defer rows.Close()

	var result []*domain.PromptTemplate
	for rows.Next() {
		t, err := scanPromptTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt template: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// DeletePromptTemplate removes a prompt template by ID.
func (d *DB) DeletePromptTemplate(ctx context.Context, id string) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM prompt_templates WHERE id = $1`, id)
	return checkRowsAffected(res, err, "prompt template", id)
}
