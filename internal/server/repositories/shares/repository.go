package shares

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	// CreatePublic inserts a token-based public share.
	CreatePublic(ctx context.Context, share *models.FileShare) (*models.FileShare, error)
	// UpsertPrivate inserts a user-targeted share or, when an active share
	// for the same (file, target) pair exists, updates its permission and
	// expiry in place.
	UpsertPrivate(ctx context.Context, share *models.FileShare) (*models.FileShare, error)
	GetByID(ctx context.Context, id string) (*models.FileShare, error)
	// FindActiveByToken resolves a public bearer token, treating expired
	// shares as absent.
	FindActiveByToken(ctx context.Context, token string) (*models.FileShare, error)
	// FindActiveForUser returns the non-expired private share of fileID
	// targeting userID, or common.ErrorNotFound.
	FindActiveForUser(ctx context.Context, fileID, userID string) (*models.FileShare, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes shares whose expiry has passed and returns the
	// number of rows deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}
