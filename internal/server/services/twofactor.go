package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/twofactor"
)

// TwoFactorSetup is what StartSetup hands back to the client: the raw
// seed for manual entry and the otpauth URI for QR provisioning. Neither
// is persisted in this form.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
}

// TwoFactorService runs TOTP enrollment and verification. The seed is
// stored encrypted under the application secret and only decrypted for
// the duration of a verification.
type TwoFactorService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cipher      *cryptox.SecretCipher
	issuer      string
	logger      logging.Logger
}

func NewTwoFactorService(db *sql.DB, m repomanager.RepositoryManager, cipher *cryptox.SecretCipher,
	issuer string, logger logging.Logger) *TwoFactorService {
	return &TwoFactorService{
		db:          db,
		repomanager: m,
		cipher:      cipher,
		issuer:      issuer,
		logger:      logger.With("module", "twofactor_service"),
	}
}

// StartSetup begins (or restarts) TOTP enrollment. A fresh seed replaces
// any half-finished attempt; an already-enabled factor must be disabled
// first.
func (s *TwoFactorService) StartSetup(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	factor, err := s.repomanager.SecondFactors(s.db).GetByUser(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if factor != nil && factor.Enabled {
		return nil, common.ErrTwoFactorAlreadyEnabled
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret := twofactor.GenerateSecret()

	encrypted, err := s.cipher.Encrypt(secret)
	if err != nil {
		return nil, err
	}

	if _, err := s.repomanager.SecondFactors(s.db).Reset(ctx, userID, encrypted); err != nil {
		return nil, err
	}

	return &TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: twofactor.ProvisioningURI(secret, user.Email, s.issuer),
	}, nil
}

// decryptSeed recovers the raw TOTP seed from a factor row.
func (s *TwoFactorService) decryptSeed(encryptedSecret string) (string, error) {
	return s.cipher.Decrypt(encryptedSecret)
}

// CompleteSetup finishes enrollment: a valid code proves the
// authenticator holds the seed, after which the factor is enabled and a
// fresh batch of backup codes is issued. The returned codes are shown
// exactly once.
func (s *TwoFactorService) CompleteSetup(ctx context.Context, userID, code string) ([]string, error) {
	factor, err := s.repomanager.SecondFactors(s.db).GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTwoFactorNotConfigured
		}
		return nil, err
	}
	if factor.Enabled {
		return nil, common.ErrTwoFactorAlreadyEnabled
	}
	if factor.EncryptedSecret == nil {
		return nil, common.ErrTwoFactorNotConfigured
	}

	seed, err := s.decryptSeed(*factor.EncryptedSecret)
	if err != nil {
		return nil, err
	}
	if !twofactor.VerifyCode(code, seed) {
		return nil, common.ErrInvalidCode
	}

	codes, err := twofactor.GenerateBackupCodes(twofactor.BackupCodeCount)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		if hashes[i], err = twofactor.HashBackupCode(c); err != nil {
			return nil, err
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.SecondFactors(tx).Enable(ctx, factor.ID); err != nil {
			return err
		}
		if err := s.repomanager.SecondFactors(tx).DeleteBackupCodes(ctx, factor.ID); err != nil {
			return err
		}
		return s.repomanager.SecondFactors(tx).AddBackupCodes(ctx, factor.ID, hashes)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "two-factor enabled", "user_id", userID)
	return codes, nil
}

// Enabled reports whether the user has a fully enrolled second factor.
func (s *TwoFactorService) Enabled(ctx context.Context, userID string) (bool, error) {
	factor, err := s.repomanager.SecondFactors(s.db).GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	return factor.Enabled, nil
}

// Verify checks a TOTP code or, failing the six-digit format, a backup
// code. A matched backup code is consumed atomically, so each one works
// exactly once even under concurrent attempts.
func (s *TwoFactorService) Verify(ctx context.Context, userID, code string) error {
	factor, err := s.repomanager.SecondFactors(s.db).GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrTwoFactorNotConfigured
		}
		return err
	}
	if !factor.Enabled || factor.EncryptedSecret == nil {
		return common.ErrTwoFactorNotConfigured
	}

	if twofactor.IsValidFormat(code) {
		seed, err := s.decryptSeed(*factor.EncryptedSecret)
		if err != nil {
			return err
		}
		if !twofactor.VerifyCode(code, seed) {
			return common.ErrInvalidCode
		}
	} else {
		if err := s.verifyBackupCode(ctx, factor.ID, code); err != nil {
			return err
		}
	}

	if err := s.repomanager.SecondFactors(s.db).SetLastVerified(ctx, factor.ID, time.Now()); err != nil {
		s.logger.Error(ctx, "last-verified update failed", "user_id", userID, "error", err.Error())
	}
	return nil
}

// verifyBackupCode matches the code against the stored hashes and
// consumes the matched row. Losing the consume race to a concurrent
// verification counts as an invalid code.
func (s *TwoFactorService) verifyBackupCode(ctx context.Context, secondFactorID, code string) error {
	rows, err := s.repomanager.SecondFactors(s.db).ListBackupCodes(ctx, secondFactorID)
	if err != nil {
		return err
	}

	hashes := make([]string, len(rows))
	for i, r := range rows {
		hashes[i] = r.CodeHash
	}
	idx := twofactor.MatchBackupCode(code, hashes)
	if idx < 0 {
		return common.ErrInvalidCode
	}

	consumed, err := s.repomanager.SecondFactors(s.db).ConsumeBackupCode(ctx, rows[idx].ID)
	if err != nil {
		return err
	}
	if !consumed {
		return common.ErrInvalidCode
	}
	return nil
}

// RegenerateBackupCodes replaces all remaining backup codes with a fresh
// batch, returning the new plaintext codes once. Requires a valid code
// first, so a stolen session cannot mint recovery codes.
func (s *TwoFactorService) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	if err := s.Verify(ctx, userID, code); err != nil {
		return nil, err
	}

	factor, err := s.repomanager.SecondFactors(s.db).GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	codes, err := twofactor.GenerateBackupCodes(twofactor.BackupCodeCount)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		if hashes[i], err = twofactor.HashBackupCode(c); err != nil {
			return nil, err
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.SecondFactors(tx).DeleteBackupCodes(ctx, factor.ID); err != nil {
			return err
		}
		return s.repomanager.SecondFactors(tx).AddBackupCodes(ctx, factor.ID, hashes)
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}
