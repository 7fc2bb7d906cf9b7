package users

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByLogin(ctx context.Context, userName string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// AdjustUsedStorage applies a signed delta to used_storage as a single
	// atomic statement and returns the new value.
	AdjustUsedStorage(ctx context.Context, userID string, delta int64) (int64, error)
	// ReconcileUsedStorage overwrites used_storage with the exact sum of
	// the user's file sizes and returns the recomputed value.
	ReconcileUsedStorage(ctx context.Context, userID string) (int64, error)
}
