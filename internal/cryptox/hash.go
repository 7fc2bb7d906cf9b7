// Package cryptox implements the cryptographic core of FileVault: content
// hashing, per-file AES-GCM encryption, envelope encryption of file keys
// under a master key, and encryption of long-lived secrets under a key
// derived from the application secret.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashContent returns the SHA-256 digest of data as a 64-character hex
// string. The digest always describes plaintext bytes, never ciphertext.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyContent re-hashes data and compares the result against digest in
// constant time. It is used on decrypted plaintext to detect corruption
// that bypassed the cipher's own authentication.
func VerifyContent(data []byte, digest string) bool {
	computed := HashContent(data)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
