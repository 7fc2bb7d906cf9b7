package stepupsessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID, token string, validity time.Duration) (*models.StepUpSession, error)
	// Find returns the session row for the given token string, expired or
	// not; the service decides what expiry means.
	Find(ctx context.Context, token string) (*models.StepUpSession, error)
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes lapsed sessions and returns the number deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}
