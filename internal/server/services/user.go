package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/auth"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
)

// UserService handles account creation and login. Login is the only place
// access tokens are minted; when the account has an enabled second
// factor, a valid code is required before the token is issued.
type UserService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	twofactor     *TwoFactorService
	secretKey     []byte
	tokenValidity time.Duration
	logger        logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tf *TwoFactorService,
	secretKey []byte, tokenValidity time.Duration, logger logging.Logger) *UserService {
	return &UserService{
		db:            db,
		repomanager:   m,
		twofactor:     tf,
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
		logger:        logger.With("module", "user_service"),
	}
}

func hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Register creates a self-service account with the USER role and the
// default storage quota.
func (s *UserService) Register(ctx context.Context, userName, email, password string) (*models.User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UserName:     userName,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		StorageQuota: models.DefaultStorageQuota,
	}

	user, err = s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// CreateByAdmin creates an account with an explicit role. Only an ADMIN
// caller may use it; the created account gets the larger admin-assigned
// quota.
func (s *UserService) CreateByAdmin(ctx context.Context, adminID, userName, email, password string, role models.Role) (*models.User, error) {
	admin, err := s.repomanager.Users(s.db).GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != models.RoleAdmin {
		return nil, common.ErrAccessDenied
	}
	if !role.Valid() {
		return nil, common.ErrorInternal
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UserName:     userName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		StorageQuota: models.AdminStorageQuota,
	}
	return s.repomanager.Users(s.db).Create(ctx, user)
}

// Login verifies credentials and returns a signed access token. Accounts
// with two-factor enabled must also supply a valid code; the distinct
// ErrTwoFactorRequired tells the client to prompt for one. Unknown user
// and wrong password both come back as ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, userName, password, twoFactorCode string) (string, *models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil, common.ErrorUnauthorized
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, common.ErrorUnauthorized
	}

	enabled, err := s.twofactor.Enabled(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	if enabled {
		if twoFactorCode == "" {
			return "", nil, common.ErrTwoFactorRequired
		}
		if err := s.twofactor.Verify(ctx, user.ID, twoFactorCode); err != nil {
			return "", nil, err
		}
	}

	token, err := auth.GenerateToken(user.ID, s.secretKey, s.tokenValidity)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return token, user, nil
}

// Authenticate resolves an access token to its user.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := auth.GetUserIDFromToken(token, s.secretKey)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}
