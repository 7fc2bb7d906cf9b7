// Package secondfactors provides the PostgreSQL-backed repository for
// per-user second-factor records and their one-time backup codes (one row
// per code).
package secondfactors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

// GetByUser returns the user's second-factor row, or common.ErrorNotFound.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (*models.SecondFactor, error) {
	query := `
		SELECT id, user_id, type, encrypted_secret, enabled, setup_complete, last_verified_at, created_at, updated_at
		FROM second_factors
		WHERE user_id = $1
	`
	sf := &models.SecondFactor{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&sf.ID, &sf.UserID, &sf.Type, &sf.EncryptedSecret, &sf.Enabled,
		&sf.SetupComplete, &sf.LastVerifiedAt, &sf.CreatedAt, &sf.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sf, nil
}

// Reset upserts the row with a new seed and clears the enabled and
// setup-complete flags until the user re-verifies.
func (r *PostgresRepository) Reset(ctx context.Context, userID, encryptedSecret string) (*models.SecondFactor, error) {
	query := `
		INSERT INTO second_factors (user_id, type, encrypted_secret)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET
			encrypted_secret = EXCLUDED.encrypted_secret,
			enabled = false,
			setup_complete = false,
			updated_at = now()
		RETURNING id, user_id, type, encrypted_secret, enabled, setup_complete, last_verified_at, created_at, updated_at
	`
	sf := &models.SecondFactor{}
	err := r.db.QueryRowContext(ctx, query, userID, models.TwoFactorTypeTOTP, encryptedSecret).Scan(
		&sf.ID, &sf.UserID, &sf.Type, &sf.EncryptedSecret, &sf.Enabled,
		&sf.SetupComplete, &sf.LastVerifiedAt, &sf.CreatedAt, &sf.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sf, nil
}

// Enable marks the second factor as verified-and-active.
func (r *PostgresRepository) Enable(ctx context.Context, id string) error {
	query := `
		UPDATE second_factors
		SET enabled = true, setup_complete = true, updated_at = now()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
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

// SetLastVerified records a successful code verification.
func (r *PostgresRepository) SetLastVerified(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE second_factors SET last_verified_at = $2, updated_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListBackupCodes returns the user's unconsumed backup-code rows.
func (r *PostgresRepository) ListBackupCodes(ctx context.Context, secondFactorID string) ([]*models.BackupCode, error) {
	query := `
		SELECT id, second_factor_id, code_hash, created_at
		FROM backup_codes
		WHERE second_factor_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, secondFactorID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.BackupCode
	for rows.Next() {
		code := &models.BackupCode{}
		if err := rows.Scan(&code.ID, &code.SecondFactorID, &code.CodeHash, &code.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// AddBackupCodes inserts one row per code hash.
func (r *PostgresRepository) AddBackupCodes(ctx context.Context, secondFactorID string, codeHashes []string) error {
	query := `INSERT INTO backup_codes (second_factor_id, code_hash) VALUES ($1, $2)`
	for _, hash := range codeHashes {
		if _, err := r.db.ExecContext(ctx, query, secondFactorID, hash); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// DeleteBackupCodes removes all of the user's backup-code rows.
func (r *PostgresRepository) DeleteBackupCodes(ctx context.Context, secondFactorID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE second_factor_id = $1`, secondFactorID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ConsumeBackupCode deletes exactly the matched code row. The conditional
// delete makes one-time use race-free: of two concurrent verifications of
// the same code, only one observes rows-affected 1.
func (r *PostgresRepository) ConsumeBackupCode(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return ra == 1, nil
}
