package files

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.StoredFile) (*models.StoredFile, error)
	GetByID(ctx context.Context, id string) (*models.StoredFile, error)
	ListByUser(ctx context.Context, userID string) ([]*models.StoredFile, error)
	Delete(ctx context.Context, id string) error
}
