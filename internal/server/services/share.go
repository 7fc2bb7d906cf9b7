package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
)

const shareTokenSize = 32

// ShareService manages public link shares and private user-to-user
// grants. Public link creation requires fresh step-up proof because the
// resulting token is an unauthenticated bearer credential; private grants
// stay inside authenticated accounts and need none. Owning the file is
// the only authority that can grant access to it.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	stepup      *StepUpService
	logger      logging.Logger
}

func NewShareService(db *sql.DB, m repomanager.RepositoryManager, stepup *StepUpService, logger logging.Logger) *ShareService {
	return &ShareService{
		db:          db,
		repomanager: m,
		stepup:      stepup,
		logger:      logger.With("module", "share_service"),
	}
}

// requireOwner loads the file and checks that userID owns it.
func (s *ShareService) requireOwner(ctx context.Context, userID, fileID string) (*models.StoredFile, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != userID {
		return nil, common.ErrAccessDenied
	}
	return file, nil
}

// CreatePublic creates a token-based link share for a file the user owns.
// expiresAt may be nil for a share without an expiry.
func (s *ShareService) CreatePublic(ctx context.Context, userID, fileID, stepUpToken string,
	permission models.Permission, expiresAt *time.Time) (*models.FileShare, error) {

	if err := s.stepup.Require(ctx, userID, stepUpToken); err != nil {
		return nil, err
	}
	if !permission.Valid() {
		return nil, common.ErrorInternal
	}
	if _, err := s.requireOwner(ctx, userID, fileID); err != nil {
		return nil, err
	}

	token, err := common.MakeRandHexString(shareTokenSize)
	if err != nil {
		return nil, err
	}

	share := &models.FileShare{
		FileID:     fileID,
		GrantedBy:  userID,
		Permission: permission,
		Token:      &token,
		ExpiresAt:  expiresAt,
	}
	return s.repomanager.Shares(s.db).CreatePublic(ctx, share)
}

// resolveTarget accepts either a user id or an email address and returns
// the matching user. Anything containing "@" is treated as an email.
func (s *ShareService) resolveTarget(ctx context.Context, target string) (*models.User, error) {
	if strings.Contains(target, "@") {
		return s.repomanager.Users(s.db).GetByEmail(ctx, target)
	}
	return s.repomanager.Users(s.db).GetByID(ctx, target)
}

// GrantToUser shares a file the user owns with another user, identified
// by id or email. Granting again to the same target replaces the
// permission and expiry of the existing grant. Self-sharing is rejected.
func (s *ShareService) GrantToUser(ctx context.Context, userID, fileID, target string,
	permission models.Permission, expiresAt *time.Time) (*models.FileShare, error) {

	if !permission.Valid() {
		return nil, common.ErrorInternal
	}
	if _, err := s.requireOwner(ctx, userID, fileID); err != nil {
		return nil, err
	}

	targetUser, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	if targetUser.ID == userID {
		return nil, common.ErrSelfShare
	}

	share := &models.FileShare{
		FileID:       fileID,
		GrantedBy:    userID,
		TargetUserID: &targetUser.ID,
		Permission:   permission,
		ExpiresAt:    expiresAt,
	}
	return s.repomanager.Shares(s.db).UpsertPrivate(ctx, share)
}

// ResolveToken returns the active share behind a public token together
// with the shared file's metadata. Expired and unknown tokens both come
// back as common.ErrorNotFound.
func (s *ShareService) ResolveToken(ctx context.Context, token string) (*models.FileShare, *models.StoredFile, error) {
	share, err := s.repomanager.Shares(s.db).FindActiveByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	file, err := s.repomanager.Files(s.db).GetByID(ctx, share.FileID)
	if err != nil {
		return nil, nil, err
	}
	return share, file, nil
}

// Revoke deletes a share. Only the user who granted it may revoke it.
// Revoking an already-expired share succeeds; it is still a row.
func (s *ShareService) Revoke(ctx context.Context, userID, shareID string) error {
	share, err := s.repomanager.Shares(s.db).GetByID(ctx, shareID)
	if err != nil {
		return err
	}
	if share.GrantedBy != userID {
		return common.ErrAccessDenied
	}
	return s.repomanager.Shares(s.db).Delete(ctx, shareID)
}

// RemoveReceived lets the target of a private share remove it from their
// own side without the grantor's involvement.
func (s *ShareService) RemoveReceived(ctx context.Context, userID, shareID string) error {
	share, err := s.repomanager.Shares(s.db).GetByID(ctx, shareID)
	if err != nil {
		return err
	}
	if share.TargetUserID == nil || *share.TargetUserID != userID {
		return common.ErrAccessDenied
	}
	return s.repomanager.Shares(s.db).Delete(ctx, shareID)
}

// CleanupExpired removes expired share rows. Expired shares are already
// invisible to every read path; this only reclaims storage.
func (s *ShareService) CleanupExpired(ctx context.Context) error {
	n, err := s.repomanager.Shares(s.db).DeleteExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info(ctx, "expired shares removed", "count", n)
	}
	return nil
}
