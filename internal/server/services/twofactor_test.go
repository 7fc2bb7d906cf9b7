package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/twofactor"
)

func newTwoFactorService(t *testing.T, db *sql.DB, rm *fakeRepoManager) *TwoFactorService {
	t.Helper()
	return NewTwoFactorService(db, rm, cryptox.NewSecretCipher("app-secret"), "FileVault", testLogger())
}

// enrolledFactor builds an enabled factor whose seed decrypts with the
// service cipher used by newTwoFactorService.
func enrolledFactor(t *testing.T, seed string) *models.SecondFactor {
	t.Helper()
	encrypted, err := cryptox.NewSecretCipher("app-secret").Encrypt(seed)
	if err != nil {
		t.Fatalf("seed encrypt error: %v", err)
	}
	return &models.SecondFactor{
		ID:              "sf-1",
		UserID:          "u-1",
		Type:            models.TwoFactorTypeTOTP,
		EncryptedSecret: &encrypted,
		Enabled:         true,
		SetupComplete:   true,
	}
}

func currentCode(t *testing.T, seed string) string {
	t.Helper()
	code, err := totp.GenerateCode(seed, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode error: %v", err)
	}
	return code
}

func TestStartSetup(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.u.byID = map[string]*models.User{"u-1": {ID: "u-1", Email: "alice@example.com"}}
	s := newTwoFactorService(t, db, rm)

	setup, err := s.StartSetup(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("StartSetup error: %v", err)
	}
	if len(setup.Secret) != 32 {
		t.Fatalf("unexpected secret length: %d", len(setup.Secret))
	}
	if !strings.Contains(setup.ProvisioningURI, "otpauth://totp/") ||
		!strings.Contains(setup.ProvisioningURI, "FileVault") {
		t.Fatalf("unexpected URI: %q", setup.ProvisioningURI)
	}

	// the stored seed must decrypt back to the returned secret
	plain, err := cryptox.NewSecretCipher("app-secret").Decrypt(rm.sf.resetSecret)
	if err != nil || plain != setup.Secret {
		t.Fatalf("stored seed mismatch: %q err=%v", plain, err)
	}
}

func TestStartSetup_AlreadyEnabled(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.sf.factor = enrolledFactor(t, twofactor.GenerateSecret())
	s := newTwoFactorService(t, db, rm)

	if _, err := s.StartSetup(context.Background(), "u-1"); !errors.Is(err, common.ErrTwoFactorAlreadyEnabled) {
		t.Fatalf("want ErrTwoFactorAlreadyEnabled, got %v", err)
	}
}

func TestCompleteSetup_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	seed := twofactor.GenerateSecret()
	rm := newFakeRepoManager()
	factor := enrolledFactor(t, seed)
	factor.Enabled = false
	factor.SetupComplete = false
	rm.sf.factor = factor
	s := newTwoFactorService(t, db, rm)

	codes, err := s.CompleteSetup(context.Background(), "u-1", currentCode(t, seed))
	if err != nil {
		t.Fatalf("CompleteSetup error: %v", err)
	}
	if len(codes) != twofactor.BackupCodeCount {
		t.Fatalf("expected %d backup codes, got %d", twofactor.BackupCodeCount, len(codes))
	}
	if len(rm.sf.enabled) != 1 || rm.sf.enabled[0] != "sf-1" {
		t.Fatalf("factor not enabled: %v", rm.sf.enabled)
	}
	if len(rm.sf.addedHashes) != twofactor.BackupCodeCount {
		t.Fatalf("backup code hashes not stored: %d", len(rm.sf.addedHashes))
	}
	for i, hash := range rm.sf.addedHashes {
		if hash == codes[i] {
			t.Fatalf("backup code stored in plaintext")
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestCompleteSetup_WrongCode(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	seed := twofactor.GenerateSecret()
	rm := newFakeRepoManager()
	factor := enrolledFactor(t, seed)
	factor.Enabled = false
	rm.sf.factor = factor
	s := newTwoFactorService(t, db, rm)

	// invert the last digit of the live code so the attempt is wrong
	code := []byte(currentCode(t, seed))
	code[5] = '0' + ('9'-code[5])%10
	if _, err := s.CompleteSetup(context.Background(), "u-1", string(code)); !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("want ErrInvalidCode, got %v", err)
	}
	if len(rm.sf.enabled) != 0 {
		t.Fatalf("factor enabled on wrong code")
	}
}

func TestCompleteSetup_NotStarted(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	s := newTwoFactorService(t, db, rm)

	if _, err := s.CompleteSetup(context.Background(), "u-1", "123456"); !errors.Is(err, common.ErrTwoFactorNotConfigured) {
		t.Fatalf("want ErrTwoFactorNotConfigured, got %v", err)
	}
}

func TestVerify_TOTP(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	seed := twofactor.GenerateSecret()
	rm := newFakeRepoManager()
	rm.sf.factor = enrolledFactor(t, seed)
	s := newTwoFactorService(t, db, rm)

	if err := s.Verify(context.Background(), "u-1", currentCode(t, seed)); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if rm.sf.lastVerified != 1 {
		t.Fatalf("last-verified not recorded")
	}
	if err := s.Verify(context.Background(), "u-1", "999999"); !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("want ErrInvalidCode, got %v", err)
	}
}

func TestVerify_NotConfigured(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	s := newTwoFactorService(t, db, rm)

	if err := s.Verify(context.Background(), "u-1", "123456"); !errors.Is(err, common.ErrTwoFactorNotConfigured) {
		t.Fatalf("want ErrTwoFactorNotConfigured, got %v", err)
	}
}

func TestVerify_BackupCode(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.sf.factor = enrolledFactor(t, twofactor.GenerateSecret())

	hash, err := twofactor.HashBackupCode("12345678")
	if err != nil {
		t.Fatalf("HashBackupCode error: %v", err)
	}
	rm.sf.codes = []*models.BackupCode{{ID: "bc-1", SecondFactorID: "sf-1", CodeHash: hash}}
	rm.sf.consumeOut = true
	s := newTwoFactorService(t, db, rm)

	if err := s.Verify(context.Background(), "u-1", "12345678"); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if len(rm.sf.consumed) != 1 || rm.sf.consumed[0] != "bc-1" {
		t.Fatalf("backup code not consumed: %v", rm.sf.consumed)
	}
}

func TestVerify_BackupCode_LostRace(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.sf.factor = enrolledFactor(t, twofactor.GenerateSecret())

	hash, err := twofactor.HashBackupCode("12345678")
	if err != nil {
		t.Fatalf("HashBackupCode error: %v", err)
	}
	rm.sf.codes = []*models.BackupCode{{ID: "bc-1", SecondFactorID: "sf-1", CodeHash: hash}}
	rm.sf.consumeOut = false // another verification deleted the row first
	s := newTwoFactorService(t, db, rm)

	if err := s.Verify(context.Background(), "u-1", "12345678"); !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("want ErrInvalidCode after lost consume race, got %v", err)
	}
}

func TestVerify_BackupCode_Unknown(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.sf.factor = enrolledFactor(t, twofactor.GenerateSecret())
	s := newTwoFactorService(t, db, rm)

	if err := s.Verify(context.Background(), "u-1", "00000000"); !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("want ErrInvalidCode, got %v", err)
	}
	if len(rm.sf.consumed) != 0 {
		t.Fatalf("consume attempted without a match")
	}
}

func TestRegenerateBackupCodes(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	seed := twofactor.GenerateSecret()
	rm := newFakeRepoManager()
	rm.sf.factor = enrolledFactor(t, seed)
	s := newTwoFactorService(t, db, rm)

	codes, err := s.RegenerateBackupCodes(context.Background(), "u-1", currentCode(t, seed))
	if err != nil {
		t.Fatalf("RegenerateBackupCodes error: %v", err)
	}
	if len(codes) != twofactor.BackupCodeCount {
		t.Fatalf("expected %d codes, got %d", twofactor.BackupCodeCount, len(codes))
	}
	if !rm.sf.deletedCodes {
		t.Fatalf("old codes not removed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
