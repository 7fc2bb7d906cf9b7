package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
)

// AccessService resolves owner/share state into view, download and delete
// rights. All checks are read-only and re-evaluated per request; shares
// can be created, revoked or expire between calls.
type AccessService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewAccessService constructs an AccessService.
func NewAccessService(db *sql.DB, m repomanager.RepositoryManager) *AccessService {
	return &AccessService{db: db, repomanager: m}
}

// activeShare returns the live private share targeting userID, or nil.
func (s *AccessService) activeShare(ctx context.Context, fileID, userID string) (*models.FileShare, error) {
	share, err := s.repomanager.Shares(s.db).FindActiveForUser(ctx, fileID, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return share, nil
}

// CanView is true for the owner and for recipients of any active private
// share. Public shares do not grant CanView by user identity; they are
// reached only through token resolution.
func (s *AccessService) CanView(ctx context.Context, userID, fileID string) (bool, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return false, err
	}
	if file.UserID == userID {
		return true, nil
	}
	share, err := s.activeShare(ctx, fileID, userID)
	if err != nil {
		return false, err
	}
	return share != nil, nil
}

// CanDownload is true for the owner and for recipients of an active
// READ_WRITE share. READ shares allow inline viewing only and must reject
// an explicit download request.
func (s *AccessService) CanDownload(ctx context.Context, userID, fileID string) (bool, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return false, err
	}
	if file.UserID == userID {
		return true, nil
	}
	share, err := s.activeShare(ctx, fileID, userID)
	if err != nil {
		return false, err
	}
	return share != nil && share.Permission == models.PermissionReadWrite, nil
}

// CanDelete is true only for the owner; share recipients can never delete,
// regardless of permission level.
func (s *AccessService) CanDelete(ctx context.Context, userID, fileID string) (bool, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return false, err
	}
	return file.UserID == userID, nil
}
