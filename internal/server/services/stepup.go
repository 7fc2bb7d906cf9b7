package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
)

const stepUpTokenSize = 32

// StepUpService issues and checks short-lived elevation tokens. A token
// is minted against a fresh second-factor verification and then covers
// any number of sensitive operations until it expires.
type StepUpService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	twofactor   *TwoFactorService
	validity    time.Duration
	logger      logging.Logger
}

func NewStepUpService(db *sql.DB, m repomanager.RepositoryManager, tf *TwoFactorService,
	validity time.Duration, logger logging.Logger) *StepUpService {
	return &StepUpService{
		db:          db,
		repomanager: m,
		twofactor:   tf,
		validity:    validity,
		logger:      logger.With("module", "stepup_service"),
	}
}

// Elevate verifies a second-factor code and, on success, mints a step-up
// token valid for the configured window.
func (s *StepUpService) Elevate(ctx context.Context, userID, code string) (string, time.Time, error) {
	if err := s.twofactor.Verify(ctx, userID, code); err != nil {
		return "", time.Time{}, err
	}

	token, err := common.MakeRandHexString(stepUpTokenSize)
	if err != nil {
		return "", time.Time{}, err
	}

	session, err := s.repomanager.StepUpSessions(s.db).Create(ctx, userID, token, s.validity)
	if err != nil {
		return "", time.Time{}, err
	}

	s.logger.Info(ctx, "step-up granted", "user_id", userID)
	return session.Token, session.ExpiresAt, nil
}

// Check validates a token for a user. Expired tokens are deleted on
// discovery and reported as invalid; a token minted for another user is
// invalid too.
func (s *StepUpService) Check(ctx context.Context, userID, token string) error {
	session, err := s.repomanager.StepUpSessions(s.db).Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrStepUpInvalid
		}
		return err
	}

	if time.Now().After(session.ExpiresAt) {
		if err := s.repomanager.StepUpSessions(s.db).Delete(ctx, token); err != nil {
			s.logger.Error(ctx, "expired step-up delete failed", "error", err.Error())
		}
		return common.ErrStepUpInvalid
	}
	if session.UserID != userID {
		return common.ErrStepUpInvalid
	}
	return nil
}

// Require enforces step-up on a sensitive operation. A missing token is
// distinguished from a bad one so callers can prompt for elevation
// rather than report a failure.
func (s *StepUpService) Require(ctx context.Context, userID, token string) error {
	if token == "" {
		return common.ErrStepUpRequired
	}
	return s.Check(ctx, userID, token)
}

// Cleanup sweeps lapsed sessions. Expiry is already enforced on every
// check; this keeps the table from growing without bound.
func (s *StepUpService) Cleanup(ctx context.Context) error {
	n, err := s.repomanager.StepUpSessions(s.db).DeleteExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info(ctx, "expired step-up sessions removed", "count", n)
	}
	return nil
}
