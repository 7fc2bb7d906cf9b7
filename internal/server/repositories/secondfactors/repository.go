package secondfactors

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	GetByUser(ctx context.Context, userID string) (*models.SecondFactor, error)
	// Reset inserts the user's second-factor row with a fresh encrypted
	// seed or, if a row exists, replaces its seed and drops it back to the
	// not-enabled, setup-incomplete state.
	Reset(ctx context.Context, userID, encryptedSecret string) (*models.SecondFactor, error)
	// Enable flips the row to enabled + setup complete.
	Enable(ctx context.Context, id string) error
	SetLastVerified(ctx context.Context, id string, at time.Time) error

	ListBackupCodes(ctx context.Context, secondFactorID string) ([]*models.BackupCode, error)
	AddBackupCodes(ctx context.Context, secondFactorID string, codeHashes []string) error
	DeleteBackupCodes(ctx context.Context, secondFactorID string) error
	// ConsumeBackupCode deletes the single code row by id and reports
	// whether this call removed it. A false result means a concurrent
	// verification consumed the code first.
	ConsumeBackupCode(ctx context.Context, id string) (bool, error)
}
