package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fgrng/yourmoment/internal/domain"
)

// CreateProcess inserts a new monitoring process.
func (d *DB) CreateProcess(ctx context.Context, p *domain.Process) error {
	filterJSON, err := json.Marshal(p.Filter)
	if err != nil {
		return fmt.Errorf("marshal filter: %w", err)
	}
	loginIDsJSON, err := json.Marshal(p.LoginIDs)
	if err != nil {
		return fmt.Errorf("marshal login_ids: %w", err)
	}
	templateIDsJSON, err := json.Marshal(p.PromptTemplateIDs)
	if err != nil {
		return fmt.Errorf("marshal prompt_template_ids: %w", err)
	}

	_, err = d.Pool.ExecContext(ctx,
		`INSERT INTO processes (
			id, owner_id, name, description, max_duration_minutes, generate_only,
			status, started_at, stopped_at, expires_at, stop_reason, error_message,
			filter, login_ids, prompt_template_ids, llm_provider_config_id,
			discovery_task, preparation_task, generation_task, posting_task,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		p.ID, p.OwnerID, p.Name, p.Description, p.MaxDurationMinutes, p.GenerateOnly,
		p.Status, p.StartedAt, p.StoppedAt, p.ExpiresAt, p.StopReason, p.ErrorMessage,
		filterJSON, loginIDsJSON, templateIDsJSON, p.LLMProviderConfigID,
		p.DiscoveryTask, p.PreparationTask, p.GenerationTask, p.PostingTask,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert process: %w", err)
	}
	return nil
}

const processColumns = `
	id, owner_id, name, description, max_duration_minutes, generate_only,
	status, started_at, stopped_at, expires_at, stop_reason, error_message,
	filter, login_ids, prompt_template_ids, llm_provider_config_id,
	discovery_task, preparation_task, generation_task, posting_task,
	created_at, updated_at
`

func scanProcess(row interface{ Scan(dest ...any) error }) (*domain.Process, error) {
	var p domain.Process
	var filterJSON, loginIDsJSON, templateIDsJSON []byte
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.MaxDurationMinutes, &p.GenerateOnly,
		&p.Status, &p.StartedAt, &p.StoppedAt, &p.ExpiresAt, &p.StopReason, &p.ErrorMessage,
		&filterJSON, &loginIDsJSON, &templateIDsJSON, &p.LLMProviderConfigID,
		&p.DiscoveryTask, &p.PreparationTask, &p.GenerationTask, &p.PostingTask,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(filterJSON, &p.Filter); err != nil {
		return nil, fmt.Errorf("unmarshal filter: %w", err)
	}
	if err := json.Unmarshal(loginIDsJSON, &p.LoginIDs); err != nil {
		return nil, fmt.Errorf("unmarshal login_ids: %w", err)
	}
	if err := json.Unmarshal(templateIDsJSON, &p.PromptTemplateIDs); err != nil {
		return nil, fmt.Errorf("unmarshal prompt_template_ids: %w", err)
	}
	return &p, nil
}

// GetProcess retrieves a process by ID.
func (d *DB) GetProcess(ctx context.Context, id string) (*domain.Process, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+processColumns+` FROM processes WHERE id = $1`, id)
	p, err := scanProcess(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("process %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get process: %w", err)
	}
	return p, nil
}

// ListProcessesByOwner returns all processes belonging to an owner.
func (d *DB) ListProcessesByOwner(ctx context.Context, ownerID string) ([]*domain.Process, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+processColumns+` FROM processes WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	defer rows.Close()

	var result []*domain.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// ListRunningProcesses returns all processes currently in "running" status,
// used by the scheduler on every tick to find the processes to drive.
func (d *DB) ListRunningProcesses(ctx context.Context) ([]*domain.Process, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+processColumns+` FROM processes WHERE status = $1`, domain.ProcessRunning)
	if err != nil {
		return nil, fmt.Errorf("list running processes: %w", err)
	}
	defer rows.Close()

	var result []*domain.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// UpdateProcess persists the mutable fields of a process (status, task
// handles, timestamps, error state).
func (d *DB) UpdateProcess(ctx context.Context, p *domain.Process) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE processes SET
			status = $1, started_at = $2, stopped_at = $3, expires_at = $4,
			stop_reason = $5, error_message = $6,
			discovery_task = $7, preparation_task = $8, generation_task = $9, posting_task = $10,
			updated_at = $11
		 WHERE id = $12`,
		p.Status, p.StartedAt, p.StoppedAt, p.ExpiresAt,
		p.StopReason, p.ErrorMessage,
		p.DiscoveryTask, p.PreparationTask, p.GenerationTask, p.PostingTask,
		p.UpdatedAt, p.ID,
	)
	return checkRowsAffected(res, err, "process", p.ID)
}

// DeleteProcess removes a process by ID. Cascades to its work items.
func (d *DB) DeleteProcess(ctx context.Context, id string) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM processes WHERE id = $1`, id)
	return checkRowsAffected(res, err, "process", id)
}
