package models

import "time"

// TwoFactorTypeTOTP is currently the only supported second-factor type.
const TwoFactorTypeTOTP = "TOTP"

// SecondFactor is the per-user (unique) second-factor record. Enabled only
// becomes true after the user proves possession with one verification;
// until then the record may hold a seed from an in-progress setup.
type SecondFactor struct {
	ID     string
	UserID string
	Type   string
	// EncryptedSecret is the TOTP seed in iv:tag:ciphertext envelope form,
	// nil until setup begins.
	EncryptedSecret *string
	Enabled         bool
	SetupComplete   bool
	LastVerifiedAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BackupCode is a single one-time recovery code, stored hashed, one row
// per code. Consumption deletes exactly the matched row.
type BackupCode struct {
	ID             string
	SecondFactorID string
	CodeHash       string
	CreatedAt      time.Time
}
