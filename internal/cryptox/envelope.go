package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
)

// MasterKeyFromSecret derives the 256-bit file master key from the
// configured secret. A 64-character hex string is decoded as the key
// bytes; any other value is used as raw text, zero-padded or truncated to
// 32 bytes. The derivation is deterministic so previously written
// envelopes stay decryptable across restarts.
func MasterKeyFromSecret(secret string) []byte {
	if len(secret) == 64 {
		if key, err := hex.DecodeString(secret); err == nil {
			return key
		}
	}
	key := make([]byte, FileKeySize)
	copy(key, secret)
	return key
}

// EncryptFileKey AEAD-encrypts a per-file key under the master key and
// serializes the result as three colon-separated hex fields:
// nonce:tag:ciphertext. A fresh nonce is generated per call, so two
// envelopes of the same file key never compare equal.
func EncryptFileKey(fileKey, masterKey []byte) (string, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, FileNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aesgcm.Seal(nil, nonce, fileKey, nil)
	split := len(sealed) - TagSize

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(nonce),
		hex.EncodeToString(sealed[split:]),
		hex.EncodeToString(sealed[:split])), nil
}

// DecryptFileKey parses a nonce:tag:ciphertext envelope and recovers the
// file key. A wrong field count or non-hex field is a structural error
// (ErrInvalidEnvelopeFormat) reported before any decryption is attempted;
// a wrong master key or corrupted field yields ErrDecryptionFailed.
func DecryptFileKey(envelope string, masterKey []byte) ([]byte, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 fields, got %d", common.ErrInvalidEnvelopeFormat, len(parts))
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != FileNonceSize {
		return nil, fmt.Errorf("%w: bad nonce field", common.ErrInvalidEnvelopeFormat)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != TagSize {
		return nil, fmt.Errorf("%w: bad tag field", common.ErrInvalidEnvelopeFormat)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext field", common.ErrInvalidEnvelopeFormat)
	}

	return DecryptFile(ciphertext, masterKey, nonce, tag)
}
