package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// secretIVSize is the GCM nonce length for secret encryption. This is
	// deliberately 16 bytes, not the 12 bytes used for files; the two
	// formats must not be conflated.
	secretIVSize = 16

	secretKDFIterations = 100_000
)

// secretKDFSalt is a fixed application-specific salt. The KDF hardens the
// derived key against brute force if it ever leaks; this is defense in
// depth, not a password store.
var secretKDFSalt = []byte("filevault.secret.v1")

// SecretCipher encrypts short long-lived secrets (the TOTP seed) under a
// key derived once from the application secret. The derived key is
// distinct from the file master key.
type SecretCipher struct {
	key []byte
}

// NewSecretCipher derives the encryption key from appSecret with
// PBKDF2-SHA256. Derivation is deterministic, so the cipher can be
// reconstructed on every process start.
func NewSecretCipher(appSecret string) *SecretCipher {
	key := pbkdf2.Key([]byte(appSecret), secretKDFSalt, secretKDFIterations, 32, sha256.New)
	return &SecretCipher{key: key}
}

// Encrypt seals text with AES-GCM using a random 16-byte IV and returns
// the iv:tag:ciphertext hex envelope.
func (c *SecretCipher) Encrypt(text string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCMWithNonceSize(block, secretIVSize)
	if err != nil {
		return "", err
	}

	iv := make([]byte, secretIVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	sealed := aesgcm.Seal(nil, iv, []byte(text), nil)
	split := len(sealed) - TagSize

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(iv),
		hex.EncodeToString(sealed[split:]),
		hex.EncodeToString(sealed[:split])), nil
}

// Decrypt reverses Encrypt. Malformed envelopes fail with
// ErrInvalidEnvelopeFormat, authentication failures with
// ErrDecryptionFailed.
func (c *SecretCipher) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: expected 3 fields, got %d", common.ErrInvalidEnvelopeFormat, len(parts))
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != secretIVSize {
		return "", fmt.Errorf("%w: bad iv field", common.ErrInvalidEnvelopeFormat)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != TagSize {
		return "", fmt.Errorf("%w: bad tag field", common.ErrInvalidEnvelopeFormat)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext field", common.ErrInvalidEnvelopeFormat)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCMWithNonceSize(block, secretIVSize)
	if err != nil {
		return "", err
	}

	sealed := append(ciphertext, tag...)
	plaintext, err := aesgcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}
