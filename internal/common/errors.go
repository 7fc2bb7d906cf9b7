// Package common defines shared constants and sentinel errors used across
// FileVault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Access-control errors. Reported generically so callers cannot tell
	// a missing resource from an insufficient grant unless they choose to.
	ErrAccessDenied = errors.New("access denied")

	// Quota ledger errors.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// Cryptographic errors. ErrInvalidEnvelopeFormat is structural and is
	// detected before any decryption is attempted; ErrDecryptionFailed
	// covers authentication failures (bad tag, wrong key, altered bytes).
	ErrInvalidEnvelopeFormat = errors.New("invalid envelope format")
	ErrDecryptionFailed      = errors.New("decryption failed")

	// ErrIntegrityCheckFailed means decryption succeeded but the plaintext
	// digest disagrees with the stored hash. Treated as a server error.
	ErrIntegrityCheckFailed = errors.New("content hash mismatch")

	// Step-up authentication errors. Required means no token was supplied,
	// Invalid means a token was supplied but does not check out. Callers
	// branch differently on the two.
	ErrStepUpRequired = errors.New("step-up verification required")
	ErrStepUpInvalid  = errors.New("step-up token invalid or expired")

	// Second-factor errors.
	ErrTwoFactorRequired       = errors.New("two-factor code required")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	ErrTwoFactorNotConfigured  = errors.New("two-factor not configured")
	ErrInvalidCode             = errors.New("invalid verification code")

	// Sharing errors.
	ErrSelfShare = errors.New("cannot share a file with yourself")
)
