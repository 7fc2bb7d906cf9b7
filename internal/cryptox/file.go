package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
)

const (
	// FileKeySize is the length of a per-file symmetric key (AES-256).
	FileKeySize = 32
	// FileNonceSize is the AES-GCM nonce length used for file encryption.
	FileNonceSize = 12
	// TagSize is the AES-GCM authentication tag length.
	TagSize = 16
)

// EncryptedFile holds the three outputs of an authenticated file
// encryption. The stored blob layout is nonce || tag || ciphertext.
type EncryptedFile struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// GenerateFileKey returns a fresh random 256-bit file key. Every stored
// file gets its own key; the key is never persisted in the clear.
func GenerateFileKey() ([]byte, error) {
	key := make([]byte, FileKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating file key: %w", err)
	}
	return key, nil
}

// EncryptFile encrypts plaintext with AES-256-GCM under key. A new random
// 12-byte nonce is generated for each call, so encrypting the same
// plaintext twice yields different ciphertext. The GCM tag is split off
// the sealed output and returned separately.
func EncryptFile(plaintext, key []byte) (*EncryptedFile, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, FileNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	sealed := aesgcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize

	return &EncryptedFile{
		Ciphertext: sealed[:split],
		Nonce:      nonce,
		Tag:        sealed[split:],
	}, nil
}

// DecryptFile reverses EncryptFile. Any authentication failure (wrong key,
// wrong nonce, altered ciphertext or tag) yields ErrDecryptionFailed and
// no plaintext is returned.
func DecryptFile(ciphertext, key, nonce, tag []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aesgcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// EncodeBlob serializes an EncryptedFile into the stored wire format:
// nonce (12 bytes) || tag (16 bytes) || ciphertext.
func EncodeBlob(ef *EncryptedFile) []byte {
	blob := make([]byte, 0, FileNonceSize+TagSize+len(ef.Ciphertext))
	blob = append(blob, ef.Nonce...)
	blob = append(blob, ef.Tag...)
	blob = append(blob, ef.Ciphertext...)
	return blob
}

// DecodeBlob splits a stored blob back into nonce, tag and ciphertext by
// position: bytes [0,12), [12,28), [28,end).
func DecodeBlob(blob []byte) (*EncryptedFile, error) {
	if len(blob) < FileNonceSize+TagSize {
		return nil, fmt.Errorf("%w: blob too short (%d bytes)", common.ErrInvalidEnvelopeFormat, len(blob))
	}
	return &EncryptedFile{
		Nonce:      blob[:FileNonceSize],
		Tag:        blob[FileNonceSize : FileNonceSize+TagSize],
		Ciphertext: blob[FileNonceSize+TagSize:],
	}, nil
}
