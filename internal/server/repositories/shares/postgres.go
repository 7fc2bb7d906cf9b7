// Package shares provides the PostgreSQL-backed repository for file share
// grants, both public (bearer token) and private (user-targeted). Expiry
// is filtered at read time; expired rows linger until the cleanup sweep.
package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const shareColumns = `id, file_id, granted_by, target_user_id, permission, token, expires_at, created_at`

func scanShare(scan func(dest ...any) error) (*models.FileShare, error) {
	share := &models.FileShare{}
	var permission string
	err := scan(&share.ID, &share.FileID, &share.GrantedBy, &share.TargetUserID,
		&permission, &share.Token, &share.ExpiresAt, &share.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	share.Permission = models.Permission(permission)
	return share, nil
}

// CreatePublic inserts a public share row (nil target, non-nil token).
func (r *PostgresRepository) CreatePublic(ctx context.Context, share *models.FileShare) (*models.FileShare, error) {
	query := `
		INSERT INTO file_shares (file_id, granted_by, permission, token, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		share.FileID, share.GrantedBy, string(share.Permission), share.Token, share.ExpiresAt).
		Scan(&share.ID, &share.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return share, nil
}

// UpsertPrivate inserts a private share or updates the permission and
// expiry of the existing (file, target) share in place, so at most one
// active private share per pair is maintained.
func (r *PostgresRepository) UpsertPrivate(ctx context.Context, share *models.FileShare) (*models.FileShare, error) {
	query := `
		INSERT INTO file_shares (file_id, granted_by, target_user_id, permission, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (file_id, target_user_id) WHERE target_user_id IS NOT NULL
		DO UPDATE SET
			permission = EXCLUDED.permission,
			expires_at = EXCLUDED.expires_at
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		share.FileID, share.GrantedBy, share.TargetUserID, string(share.Permission), share.ExpiresAt).
		Scan(&share.ID, &share.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return share, nil
}

// GetByID returns the share row regardless of expiry; authorization
// decisions on revocation need the row even when it has lapsed.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.FileShare, error) {
	query := `SELECT ` + shareColumns + ` FROM file_shares WHERE id = $1`
	return scanShare(r.db.QueryRowContext(ctx, query, id).Scan)
}

// FindActiveByToken resolves a bearer token. Expired shares surface as
// common.ErrorNotFound, identical to tokens that never existed.
func (r *PostgresRepository) FindActiveByToken(ctx context.Context, token string) (*models.FileShare, error) {
	query := `
		SELECT ` + shareColumns + ` FROM file_shares
		WHERE token = $1 AND (expires_at IS NULL OR expires_at > now())
	`
	return scanShare(r.db.QueryRowContext(ctx, query, token).Scan)
}

// FindActiveForUser returns the live private share of fileID targeting
// userID, or common.ErrorNotFound.
func (r *PostgresRepository) FindActiveForUser(ctx context.Context, fileID, userID string) (*models.FileShare, error) {
	query := `
		SELECT ` + shareColumns + ` FROM file_shares
		WHERE file_id = $1 AND target_user_id = $2 AND (expires_at IS NULL OR expires_at > now())
	`
	return scanShare(r.db.QueryRowContext(ctx, query, fileID, userID).Scan)
}

// Delete removes a share row by id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM file_shares WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if ra == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// DeleteExpired proactively removes lapsed shares.
func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM file_shares WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return ra, nil
}
