// Package db provides the PostgreSQL-backed persistence layer for
// processes, work items, upstream logins, LLM provider configs and
// prompt templates.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// DB wraps a database/sql connection pool for PostgreSQL.
type DB struct {
	Pool *sql.DB
}

// New opens a connection pool against databaseURL and verifies it with a
// ping. The postgres driver is registered by this package's own import
// of github.com/lib/pq.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(5)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.Pool.Close()
}

// Migrate runs the database schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Pool.ExecContext(ctx, migrationSQL)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation
// (SQLSTATE 23505), the sole cross-worker synchronization signal for
// duplicate (process, article, login) work items.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

const migrationSQL = `
CREATE TABLE IF NOT EXISTS upstream_logins (
    id                 TEXT PRIMARY KEY,
    owner_id           TEXT NOT NULL,
    display_name       TEXT NOT NULL,
    encrypted_username TEXT NOT NULL,
    encrypted_password TEXT NOT NULL,
    is_admin           BOOLEAN NOT NULL DEFAULT false,
    is_active          BOOLEAN NOT NULL DEFAULT true,
    last_used_at       TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_upstream_logins_owner ON upstream_logins(owner_id);

CREATE TABLE IF NOT EXISTS llm_provider_configs (
    id                TEXT PRIMARY KEY,
    owner_id          TEXT NOT NULL,
    provider_tag      TEXT NOT NULL,
    model_name        TEXT NOT NULL,
    encrypted_api_key TEXT NOT NULL,
    max_tokens        INTEGER NOT NULL DEFAULT 1024,
    temperature       DOUBLE PRECISION NOT NULL DEFAULT 0.7,
    is_active         BOOLEAN NOT NULL DEFAULT true,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_llm_provider_configs_owner ON llm_provider_configs(owner_id);

CREATE TABLE IF NOT EXISTS prompt_templates (
    id                   TEXT PRIMARY KEY,
    owner_id             TEXT NOT NULL DEFAULT '',
    category             TEXT NOT NULL,
    name                 TEXT NOT NULL,
    description          TEXT NOT NULL DEFAULT '',
    system_prompt        TEXT NOT NULL DEFAULT '',
    user_prompt_template  TEXT NOT NULL,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_prompt_templates_owner ON prompt_templates(owner_id);

CREATE TABLE IF NOT EXISTS processes (
    id                      TEXT PRIMARY KEY,
    owner_id                TEXT NOT NULL,
    name                    TEXT NOT NULL,
    description             TEXT NOT NULL DEFAULT '',
    max_duration_minutes    INTEGER NOT NULL,
    generate_only           BOOLEAN NOT NULL DEFAULT false,
    status                  TEXT NOT NULL DEFAULT 'stopped',
    started_at              TIMESTAMPTZ,
    stopped_at              TIMESTAMPTZ,
    expires_at              TIMESTAMPTZ,
    stop_reason             TEXT NOT NULL DEFAULT '',
    error_message           TEXT NOT NULL DEFAULT '',
    filter                  JSONB NOT NULL DEFAULT '{}',
    login_ids               JSONB NOT NULL DEFAULT '[]',
    prompt_template_ids     JSONB NOT NULL DEFAULT '[]',
    llm_provider_config_id  TEXT NOT NULL DEFAULT '',
    discovery_task          TEXT NOT NULL DEFAULT '',
    preparation_task        TEXT NOT NULL DEFAULT '',
    generation_task         TEXT NOT NULL DEFAULT '',
    posting_task            TEXT NOT NULL DEFAULT '',
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_processes_owner ON processes(owner_id);
CREATE INDEX IF NOT EXISTS idx_processes_status ON processes(status);

CREATE TABLE IF NOT EXISTS work_items (
    id                  TEXT PRIMARY KEY,
    process_id          TEXT NOT NULL REFERENCES processes(id) ON DELETE CASCADE,
    login_id            TEXT NOT NULL,
    user_id             TEXT NOT NULL DEFAULT '',
    article_id          TEXT NOT NULL,
    upstream_comment_id TEXT NOT NULL DEFAULT '',
    prompt_template_id  TEXT NOT NULL DEFAULT '',
    llm_provider_id     TEXT NOT NULL DEFAULT '',

    title        TEXT NOT NULL DEFAULT '',
    author       TEXT NOT NULL DEFAULT '',
    category_id  INTEGER,
    task_id      INTEGER,
    url          TEXT NOT NULL DEFAULT '',
    content_text TEXT NOT NULL DEFAULT '',
    content_html TEXT NOT NULL DEFAULT '',
    published_at TIMESTAMPTZ,
    edited_at    TIMESTAMPTZ,
    scraped_at   TIMESTAMPTZ,

    comment_text       TEXT NOT NULL DEFAULT '',
    llm_model_name     TEXT NOT NULL DEFAULT '',
    llm_provider_name  TEXT NOT NULL DEFAULT '',
    generation_tokens  INTEGER NOT NULL DEFAULT 0,
    generation_time_ms BIGINT NOT NULL DEFAULT 0,

    status        TEXT NOT NULL DEFAULT 'discovered',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    posted_at     TIMESTAMPTZ,
    failed_at     TIMESTAMPTZ,
    error_message TEXT NOT NULL DEFAULT '',
    retry_count   INTEGER NOT NULL DEFAULT 0,

    UNIQUE (process_id, article_id, login_id)
);
CREATE INDEX IF NOT EXISTS idx_work_items_process_status ON work_items(process_id, status);
CREATE INDEX IF NOT EXISTS idx_work_items_article ON work_items(article_id);
`
