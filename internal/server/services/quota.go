// Package services contains the server-side business logic: the encrypted
// file pipeline, quota ledger, access control, sharing, second factor and
// step-up authentication.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
)

// QuotaError reports a rejected allocation with the byte counts the caller
// needs for error messaging. It matches common.ErrQuotaExceeded under
// errors.Is.
type QuotaError struct {
	Required  int64
	Available int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("storage quota exceeded: %d bytes required, %d available", e.Required, e.Available)
}

func (e *QuotaError) Is(target error) bool {
	return target == common.ErrQuotaExceeded
}

// QuotaCheck is the result of a quota check. Available may be reported
// even when the allocation is not allowed.
type QuotaCheck struct {
	Allowed   bool
	Available int64
}

// QuotaService maintains the per-user ledger of bytes consumed against
// the storage quota.
type QuotaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewQuotaService constructs a QuotaService.
func NewQuotaService(db *sql.DB, m repomanager.RepositoryManager) *QuotaService {
	return &QuotaService{db: db, repomanager: m}
}

// Check reads the user's quota and usage and reports whether candidateBytes
// more can be stored. Callers run this against the final stored byte
// length, after any size-altering preprocessing.
func (s *QuotaService) Check(ctx context.Context, userID string, candidateBytes int64) (*QuotaCheck, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	available := user.StorageQuota - user.UsedStorage
	return &QuotaCheck{Allowed: available >= candidateBytes, Available: available}, nil
}

// AdjustUsed applies a signed delta to the user's used-bytes counter. The
// increment is atomic at the data store, so concurrent uploads and deletes
// for the same user cannot under-count.
func (s *QuotaService) AdjustUsed(ctx context.Context, userID string, deltaBytes int64) error {
	return s.adjustUsed(ctx, s.db, userID, deltaBytes)
}

func (s *QuotaService) adjustUsed(ctx context.Context, db dbx.DBTX, userID string, deltaBytes int64) error {
	_, err := s.repomanager.Users(db).AdjustUsedStorage(ctx, userID, deltaBytes)
	return err
}

// Reconcile overwrites the counter with the exact sum of the user's file
// sizes and returns the recomputed value. Drift correction only, never in
// the hot path.
func (s *QuotaService) Reconcile(ctx context.Context, userID string) (int64, error) {
	return s.repomanager.Users(s.db).ReconcileUsedStorage(ctx, userID)
}

// Stats reports the user's storage accounting. Free may be negative when
// usage exceeds quota; the percentage is rounded to two decimals.
func (s *QuotaService) Stats(ctx context.Context, userID string) (*models.QuotaStats, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var pct float64
	if user.StorageQuota > 0 {
		pct = math.Round(float64(user.UsedStorage)/float64(user.StorageQuota)*100*100) / 100
	}

	return &models.QuotaStats{
		Total:          user.StorageQuota,
		Used:           user.UsedStorage,
		Free:           user.StorageQuota - user.UsedStorage,
		PercentageUsed: pct,
	}, nil
}
