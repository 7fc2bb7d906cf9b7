package models

import "time"

// StoredFile describes an encrypted stored object. The ciphertext itself
// lives in object storage under StorageKey as nonce || tag || ciphertext;
// this row carries everything needed to locate, decrypt and verify it.
type StoredFile struct {
	ID     string
	UserID string
	// Name is the logical file name shown to users.
	Name string
	// StorageKey is the opaque object-storage key of the ciphertext blob.
	StorageKey string
	// Size is the plaintext byte length as stored (after any compression),
	// the exact amount charged against the quota ledger.
	Size int64
	// MimeType is the declared content type, validated at upload.
	MimeType string
	// Hash is the hex SHA-256 digest of the plaintext, never the ciphertext.
	Hash string
	// Encrypted is true for envelope-encrypted blobs.
	Encrypted bool
	// Compressed marks payloads that were gzip-compressed before hashing
	// and encryption.
	Compressed bool
	// EncryptedFileKey is the per-file key in its nonce:tag:ciphertext
	// envelope form, sealed under the master key.
	EncryptedFileKey string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
