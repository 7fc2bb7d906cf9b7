package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/twofactor"
)

func newStepUpService(t *testing.T, db *sql.DB, rm *fakeRepoManager) *StepUpService {
	t.Helper()
	tf := NewTwoFactorService(db, rm, cryptox.NewSecretCipher("app-secret"), "FileVault", testLogger())
	return NewStepUpService(db, rm, tf, 15*time.Minute, testLogger())
}

func TestElevate_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	seed := twofactor.GenerateSecret()
	rm := newFakeRepoManager()
	rm.sf.factor = enrolledFactor(t, seed)
	s := newStepUpService(t, db, rm)

	token, expires, err := s.Elevate(context.Background(), "u-1", currentCode(t, seed))
	if err != nil {
		t.Fatalf("Elevate error: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(token) {
		t.Fatalf("unexpected token format: %q", token)
	}
	if expires.Before(time.Now().Add(14*time.Minute)) || expires.After(time.Now().Add(16*time.Minute)) {
		t.Fatalf("expiry outside validity window: %v", expires)
	}
	if len(rm.su.created) != 1 {
		t.Fatalf("session not persisted")
	}
}

func TestElevate_InvalidCode(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.sf.factor = enrolledFactor(t, twofactor.GenerateSecret())
	s := newStepUpService(t, db, rm)

	if _, _, err := s.Elevate(context.Background(), "u-1", "000000"); !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("want ErrInvalidCode, got %v", err)
	}
	if len(rm.su.created) != 0 {
		t.Fatalf("session minted for invalid code")
	}
}

func TestCheck_Valid(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.su.session = &models.StepUpSession{ID: "ss-1", UserID: "u-1", Token: "tok", ExpiresAt: time.Now().Add(5 * time.Minute)}
	s := newStepUpService(t, db, rm)

	if err := s.Check(context.Background(), "u-1", "tok"); err != nil {
		t.Fatalf("Check error: %v", err)
	}
}

func TestCheck_ExpiredDeletesSession(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.su.session = &models.StepUpSession{ID: "ss-1", UserID: "u-1", Token: "tok", ExpiresAt: time.Now().Add(-time.Second)}
	s := newStepUpService(t, db, rm)

	if err := s.Check(context.Background(), "u-1", "tok"); !errors.Is(err, common.ErrStepUpInvalid) {
		t.Fatalf("want ErrStepUpInvalid, got %v", err)
	}
	if len(rm.su.deleted) != 1 || rm.su.deleted[0] != "tok" {
		t.Fatalf("expired session not deleted: %v", rm.su.deleted)
	}
}

func TestCheck_WrongUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.su.session = &models.StepUpSession{ID: "ss-1", UserID: "u-1", Token: "tok", ExpiresAt: time.Now().Add(5 * time.Minute)}
	s := newStepUpService(t, db, rm)

	if err := s.Check(context.Background(), "u-2", "tok"); !errors.Is(err, common.ErrStepUpInvalid) {
		t.Fatalf("want ErrStepUpInvalid, got %v", err)
	}
}

func TestRequire_Distinguishes(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	s := newStepUpService(t, db, rm)

	if err := s.Require(context.Background(), "u-1", ""); !errors.Is(err, common.ErrStepUpRequired) {
		t.Fatalf("empty token: want ErrStepUpRequired, got %v", err)
	}
	if err := s.Require(context.Background(), "u-1", "unknown"); !errors.Is(err, common.ErrStepUpInvalid) {
		t.Fatalf("unknown token: want ErrStepUpInvalid, got %v", err)
	}
}

func TestCleanup(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.su.expiredCount = 4
	s := newStepUpService(t, db, rm)

	if err := s.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup error: %v", err)
	}
}
