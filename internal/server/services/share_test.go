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
)

func newShareService(t *testing.T, db *sql.DB, rm *fakeRepoManager) *ShareService {
	t.Helper()
	tf := NewTwoFactorService(db, rm, cryptox.NewSecretCipher("app-secret"), "FileVault", testLogger())
	stepup := NewStepUpService(db, rm, tf, 15*time.Minute, testLogger())
	return NewShareService(db, rm, stepup, testLogger())
}

func withStepUp(rm *fakeRepoManager, userID string) {
	rm.su.session = &models.StepUpSession{ID: "ss-1", UserID: userID, Token: "tok", ExpiresAt: time.Now().Add(10 * time.Minute)}
}

func ownedFile() *models.StoredFile {
	return &models.StoredFile{ID: "f-1", UserID: "u-1", Name: "doc.txt"}
}

func TestCreatePublic_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.f.files = map[string]*models.StoredFile{"f-1": ownedFile()}
	withStepUp(rm, "u-1")
	s := newShareService(t, db, rm)

	share, err := s.CreatePublic(context.Background(), "u-1", "f-1", "tok", models.PermissionRead, nil)
	if err != nil {
		t.Fatalf("CreatePublic error: %v", err)
	}
	if !share.Public() || share.Token == nil {
		t.Fatalf("expected public share: %+v", share)
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(*share.Token) {
		t.Fatalf("unexpected token format: %q", *share.Token)
	}
}

func TestCreatePublic_Gates(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.f.files = map[string]*models.StoredFile{"f-1": ownedFile()}
	s := newShareService(t, db, rm)

	// no step-up token
	if _, err := s.CreatePublic(context.Background(), "u-1", "f-1", "", models.PermissionRead, nil); !errors.Is(err, common.ErrStepUpRequired) {
		t.Fatalf("want ErrStepUpRequired, got %v", err)
	}

	// step-up ok but not the owner
	withStepUp(rm, "u-2")
	if _, err := s.CreatePublic(context.Background(), "u-2", "f-1", "tok", models.PermissionRead, nil); !errors.Is(err, common.ErrAccessDenied) {
		t.Fatalf("want ErrAccessDenied, got %v", err)
	}
	if len(rm.sh.created) != 0 {
		t.Fatalf("share created despite rejection")
	}
}

func TestGrantToUser_ByEmail(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.f.files = map[string]*models.StoredFile{"f-1": ownedFile()}
	rm.u.byEmail = map[string]*models.User{"bob@example.com": {ID: "u-2", Email: "bob@example.com"}}
	s := newShareService(t, db, rm)

	share, err := s.GrantToUser(context.Background(), "u-1", "f-1", "bob@example.com", models.PermissionReadWrite, nil)
	if err != nil {
		t.Fatalf("GrantToUser error: %v", err)
	}
	if share.TargetUserID == nil || *share.TargetUserID != "u-2" || share.Token != nil {
		t.Fatalf("unexpected share: %+v", share)
	}
}

func TestGrantToUser_ByID(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.f.files = map[string]*models.StoredFile{"f-1": ownedFile()}
	rm.u.byID = map[string]*models.User{"u-2": {ID: "u-2"}}
	s := newShareService(t, db, rm)

	share, err := s.GrantToUser(context.Background(), "u-1", "f-1", "u-2", models.PermissionRead, nil)
	if err != nil {
		t.Fatalf("GrantToUser error: %v", err)
	}
	if share.TargetUserID == nil || *share.TargetUserID != "u-2" {
		t.Fatalf("unexpected share: %+v", share)
	}
}

// Private grants stay inside authenticated accounts, so they must work
// for a user who has never elevated and has no second factor enrolled.
func TestGrantToUser_NoElevationNeeded(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.f.files = map[string]*models.StoredFile{"f-1": ownedFile()}
	rm.u.byID = map[string]*models.User{"u-2": {ID: "u-2"}}
	s := newShareService(t, db, rm)

	if rm.su.session != nil {
		t.Fatalf("fixture must not carry a step-up session")
	}
	share, err := s.GrantToUser(context.Background(), "u-1", "f-1", "u-2", models.PermissionRead, nil)
	if err != nil {
		t.Fatalf("GrantToUser without elevation: %v", err)
	}
	if share.TargetUserID == nil || *share.TargetUserID != "u-2" {
		t.Fatalf("unexpected share: %+v", share)
	}
}

func TestGrantToUser_SelfShare(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.f.files = map[string]*models.StoredFile{"f-1": ownedFile()}
	rm.u.byID = map[string]*models.User{"u-1": {ID: "u-1"}}
	s := newShareService(t, db, rm)

	if _, err := s.GrantToUser(context.Background(), "u-1", "f-1", "u-1", models.PermissionRead, nil); !errors.Is(err, common.ErrSelfShare) {
		t.Fatalf("want ErrSelfShare, got %v", err)
	}
}

func TestGrantToUser_UnknownTarget(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.f.files = map[string]*models.StoredFile{"f-1": ownedFile()}
	s := newShareService(t, db, rm)

	if _, err := s.GrantToUser(context.Background(), "u-1", "f-1", "ghost@example.com", models.PermissionRead, nil); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestResolveToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.f.files = map[string]*models.StoredFile{"f-1": ownedFile()}
	token := "tok-xyz"
	rm.sh.byToken = &models.FileShare{ID: "s-1", FileID: "f-1", Permission: models.PermissionRead, Token: &token}
	s := newShareService(t, db, rm)

	share, file, err := s.ResolveToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ResolveToken error: %v", err)
	}
	if share.ID != "s-1" || file.ID != "f-1" {
		t.Fatalf("unexpected resolution: %+v / %+v", share, file)
	}

	if _, _, err := s.ResolveToken(context.Background(), "missing"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestRevoke_GranterOnly(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.sh.getOut = &models.FileShare{ID: "s-1", FileID: "f-1", GrantedBy: "u-1"}
	s := newShareService(t, db, rm)

	if err := s.Revoke(context.Background(), "u-2", "s-1"); !errors.Is(err, common.ErrAccessDenied) {
		t.Fatalf("non-granter: want ErrAccessDenied, got %v", err)
	}
	if err := s.Revoke(context.Background(), "u-1", "s-1"); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if len(rm.sh.deleted) != 1 || rm.sh.deleted[0] != "s-1" {
		t.Fatalf("share not deleted: %v", rm.sh.deleted)
	}
}

func TestRemoveReceived_TargetOnly(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	target := "u-2"
	rm.sh.getOut = &models.FileShare{ID: "s-1", FileID: "f-1", GrantedBy: "u-1", TargetUserID: &target}
	s := newShareService(t, db, rm)

	if err := s.RemoveReceived(context.Background(), "u-3", "s-1"); !errors.Is(err, common.ErrAccessDenied) {
		t.Fatalf("non-target: want ErrAccessDenied, got %v", err)
	}
	if err := s.RemoveReceived(context.Background(), "u-2", "s-1"); err != nil {
		t.Fatalf("RemoveReceived error: %v", err)
	}
	if len(rm.sh.deleted) != 1 {
		t.Fatalf("share not deleted: %v", rm.sh.deleted)
	}
}
