package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fgrng/yourmoment/internal/domain"
)

// CreateUpstreamLogin inserts a new set of upstream credentials. Username
// and password are expected already encrypted by internal/crypto.Vault.
func (d *DB) CreateUpstreamLogin(ctx context.Context, l *domain.UpstreamLogin) error {
	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO upstream_logins (
			id, owner_id, display_name, encrypted_username, encrypted_password,
			is_admin, is_active, last_used_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		l.ID, l.OwnerID, l.DisplayName, l.EncryptedUsername, l.EncryptedPassword,
		l.IsAdmin, l.IsActive, l.LastUsedAt, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upstream login: %w", err)
	}
	return nil
}

const upstreamLoginColumns = `
	id, owner_id, display_name, encrypted_username, encrypted_password,
	is_admin, is_active, last_used_at, created_at
`

func scanUpstreamLogin(row interface{ Scan(dest ...any) error }) (*domain.UpstreamLogin, error) {
	var l domain.UpstreamLogin
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.DisplayName, &l.EncryptedUsername, &l.EncryptedPassword,
		&l.IsAdmin, &l.IsActive, &l.LastUsedAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetUpstreamLogin retrieves an upstream login by ID.
func (d *DB) GetUpstreamLogin(ctx context.Context, id string) (*domain.UpstreamLogin, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+upstreamLoginColumns+` FROM upstream_logins WHERE id = $1`, id)
	l, err := scanUpstreamLogin(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("upstream login %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get upstream login: %w", err)
	}
	return l, nil
}

// ListUpstreamLoginsByOwner returns all logins belonging to an owner,
// active or not.
func (d *DB) ListUpstreamLoginsByOwner(ctx context.Context, ownerID string) ([]*domain.UpstreamLogin, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+upstreamLoginColumns+` FROM upstream_logins WHERE owner_id = $1 ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list upstream logins: %w", err)
	}
	defer rows.Close()

	var result []*domain.UpstreamLogin
	for rows.Next() {
		l, err := scanUpstreamLogin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upstream login: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// TouchUpstreamLogin updates last_used_at to the current time.
func (d *DB) TouchUpstreamLogin(ctx context.Context, id string) error {
	res, err := d.Pool.ExecContext(ctx, `UPDATE upstream_logins SET last_used_at = NOW() WHERE id = $1`, id)
	return checkRowsAffected(res, err, "upstream login", id)
}

// DeleteUpstreamLogin removes an upstream login by ID.
func (d *DB) DeleteUpstreamLogin(ctx context.Context, id string) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM upstream_logins WHERE id = $1`, id)
	return checkRowsAffected(res, err, "upstream login", id)
}
