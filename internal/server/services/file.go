package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blob"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/validation"
)

// FileService owns the envelope-encryption pipeline: validate, compress,
// hash, encrypt, quota-account and store on upload; resolve access,
// fetch, decrypt and verify on read; and the step-up-gated delete path.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	quota       *QuotaService
	access      *AccessService
	stepup      *StepUpService
	masterKey   []byte
	logger      logging.Logger
}

// NewFileService constructs a FileService. The master key is the
// process-wide key derived once from configuration and injected here.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store,
	quota *QuotaService, access *AccessService, stepup *StepUpService,
	masterKey []byte, logger logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		quota:       quota,
		access:      access,
		stepup:      stepup,
		masterKey:   masterKey,
		logger:      logger.With("module", "file_service"),
	}
}

// newStorageKey returns an opaque, date-partitioned object key.
func newStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("users/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// Upload runs the full pipeline: validate, optionally compress, hash the
// plaintext, encrypt under a fresh file key, envelope-encrypt that key
// under the master key, check the quota against the final stored size,
// write the blob, create the record, and only then charge the ledger.
func (s *FileService) Upload(ctx context.Context, userID, name, mimeType string, data []byte) (*models.StoredFile, error) {

	if err := validation.Validate(int64(len(data)), mimeType, name); err != nil {
		return nil, err
	}

	// Size-altering preprocessing happens before hashing and encryption,
	// so the hash and the quota both describe the stored plaintext.
	data, compressed := compressBytes(data)
	size := int64(len(data))

	digest := cryptox.HashContent(data)

	fileKey, err := cryptox.GenerateFileKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	defer common.WipeByteArray(fileKey)

	encrypted, err := cryptox.EncryptFile(data, fileKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	envelope, err := cryptox.EncryptFileKey(fileKey, s.masterKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	check, err := s.quota.Check(ctx, userID, size)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return nil, &QuotaError{Required: size, Available: check.Available}
	}

	storageKey := newStorageKey()
	if err := s.blobs.Put(ctx, storageKey, cryptox.EncodeBlob(encrypted)); err != nil {
		return nil, fmt.Errorf("blob write failed: %w", err)
	}

	file := &models.StoredFile{
		UserID:           userID,
		Name:             name,
		StorageKey:       storageKey,
		Size:             size,
		MimeType:         mimeType,
		Hash:             digest,
		Encrypted:        true,
		Compressed:       compressed,
		EncryptedFileKey: envelope,
	}

	file, err = s.repomanager.Files(s.db).Create(ctx, file)
	if err != nil {
		// The metadata commit failed after the blob write; remove the
		// orphan so no un-accounted ciphertext lingers.
		if delErr := s.blobs.Delete(ctx, storageKey); delErr != nil {
			s.logger.Error(ctx, "orphan blob cleanup failed", "storage_key", storageKey, "error", delErr.Error())
		}
		return nil, err
	}

	// Charged only after the blob write and metadata commit succeed, so a
	// failed upload never consumes quota. An error here leaves drift that
	// reconciliation corrects.
	if err := s.quota.AdjustUsed(ctx, userID, size); err != nil {
		s.logger.Error(ctx, "quota increment failed", "user_id", userID, "bytes", size, "error", err.Error())
	}

	return file, nil
}

// download fetches, decrypts, verifies, and decompresses a file body.
func (s *FileService) download(ctx context.Context, file *models.StoredFile) ([]byte, error) {
	blobBytes, err := s.blobs.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("blob read failed: %w", err)
	}

	encrypted, err := cryptox.DecodeBlob(blobBytes)
	if err != nil {
		return nil, err
	}

	fileKey, err := cryptox.DecryptFileKey(file.EncryptedFileKey, s.masterKey)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(fileKey)

	plaintext, err := cryptox.DecryptFile(encrypted.Ciphertext, fileKey, encrypted.Nonce, encrypted.Tag)
	if err != nil {
		return nil, err
	}

	// The AEAD tag already authenticates the ciphertext; a digest mismatch
	// after successful decryption means a logic bug or a storage-layer bit
	// flip and is surfaced as its own fatal error.
	if !cryptox.VerifyContent(plaintext, file.Hash) {
		return nil, common.ErrIntegrityCheckFailed
	}

	if file.Compressed {
		if plaintext, err = decompressBytes(plaintext); err != nil {
			return nil, fmt.Errorf("%w: decompression failed: %v", common.ErrorInternal, err)
		}
	}
	return plaintext, nil
}

// Download returns the decrypted file bytes for a user. asAttachment
// requests explicit download semantics, which READ-only shares reject;
// inline viewing needs CanView only.
func (s *FileService) Download(ctx context.Context, userID, fileID string, asAttachment bool) ([]byte, *models.StoredFile, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	var allowed bool
	if asAttachment {
		allowed, err = s.access.CanDownload(ctx, userID, fileID)
	} else {
		allowed, err = s.access.CanView(ctx, userID, fileID)
	}
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		return nil, nil, common.ErrAccessDenied
	}

	data, err := s.download(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	return data, file, nil
}

// DownloadShared resolves a public share token and returns the file bytes.
// Expired and unknown tokens are indistinguishable to the caller. A READ
// share serves inline viewing only.
func (s *FileService) DownloadShared(ctx context.Context, token string, asAttachment bool) ([]byte, *models.StoredFile, error) {
	share, err := s.repomanager.Shares(s.db).FindActiveByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if asAttachment && share.Permission != models.PermissionReadWrite {
		return nil, nil, common.ErrAccessDenied
	}

	file, err := s.repomanager.Files(s.db).GetByID(ctx, share.FileID)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.download(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	return data, file, nil
}

// List returns the metadata of the user's own files.
func (s *FileService) List(ctx context.Context, userID string) ([]*models.StoredFile, error) {
	return s.repomanager.Files(s.db).ListByUser(ctx, userID)
}

// Delete removes a file: step-up proof, owner check, blob delete, then
// record delete and ledger reversal in one transaction. Only the owner
// may delete.
func (s *FileService) Delete(ctx context.Context, userID, fileID, stepUpToken string) error {
	if err := s.stepup.Require(ctx, userID, stepUpToken); err != nil {
		return err
	}

	allowed, err := s.access.CanDelete(ctx, userID, fileID)
	if err != nil {
		return err
	}
	if !allowed {
		return common.ErrAccessDenied
	}

	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, file.StorageKey); err != nil {
		return fmt.Errorf("blob delete failed: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Files(tx).Delete(ctx, fileID); err != nil {
			return err
		}
		// Reverses the exact original stored size.
		_, err := s.repomanager.Users(tx).AdjustUsedStorage(ctx, userID, -file.Size)
		return err
	})
}
