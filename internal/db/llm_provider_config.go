package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fgrng/yourmoment/internal/domain"
)

// CreateLLMProviderConfig inserts a new LLM provider account. The API key
// is expected already encrypted by internal/crypto.Vault.
func (d *DB) CreateLLMProviderConfig(ctx context.Context, c *domain.LLMProviderConfig) error {
	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO llm_provider_configs (
			id, owner_id, provider_tag, model_name, encrypted_api_key,
			max_tokens, temperature, is_active, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.OwnerID, c.ProviderTag, c.ModelName, c.EncryptedAPIKey,
		c.MaxTokens, c.Temperature, c.IsActive, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert llm provider config: %w", err)
	}
	return nil
}

const llmProviderConfigColumns = `
	id, owner_id, provider_tag, model_name, encrypted_api_key,
	max_tokens, temperature, is_active, created_at
`

func scanLLMProviderConfig(row interface{ Scan(dest ...any) error }) (*domain.LLMProviderConfig, error) {
	var c domain.LLMProviderConfig
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.ProviderTag, &c.ModelName, &c.EncryptedAPIKey,
		&c.MaxTokens, &c.Temperature, &c.IsActive, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetLLMProviderConfig retrieves a provider config by ID.
func (d *DB) GetLLMProviderConfig(ctx context.Context, id string) (*domain.LLMProviderConfig, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+llmProviderConfigColumns+` FROM llm_provider_configs WHERE id = $1`, id)
	c, err := scanLLMProviderConfig(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("llm provider config %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get llm provider config: %w", err)
	}
	return c, nil
}

// ListLLMProviderConfigsByOwner returns all provider configs belonging to
// an owner.
func (d *DB) ListLLMProviderConfigsByOwner(ctx context.Context, ownerID string) ([]*domain.LLMProviderConfig, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+llmProviderConfigColumns+` FROM llm_provider_configs WHERE owner_id = $1 ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list llm provider configs: %w", err)
	}
	defer rows.Close()

	var result []*domain.LLMProviderConfig
	for rows.Next() {
		c, err := scanLLMProviderConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan llm provider config: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// DeleteLLMProviderConfig removes a provider config by ID.
func (d *DB) DeleteLLMProviderConfig(ctx context.Context, id string) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM llm_provider_configs WHERE id = $1`, id)
	return checkRowsAffected(res, err, "llm provider config", id)
}
