// Package models defines the server-side data models persisted in the
// database.
package models

import "time"

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
	RoleGuest   Role = "GUEST"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser, RoleGuest:
		return true
	default:
		return false
	}
}

// Default storage quotas in bytes. Self-registered accounts get
// DefaultStorageQuota; admin-created accounts get AdminStorageQuota.
const (
	DefaultStorageQuota int64 = 100 << 20 // 100 MiB
	AdminStorageQuota   int64 = 1 << 30   // 1 GiB
)

// User is an account row. UsedStorage is adjusted by signed deltas on
// upload/delete and should equal the sum of the user's file sizes;
// reconciliation recomputes it exactly from the files table.
type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash string
	Role         Role
	StorageQuota int64
	UsedStorage  int64
	CreatedAt    time.Time
}

// QuotaStats is the reported view of a user's storage accounting. Free may
// be negative when usage exceeds quota through a race or a policy change.
type QuotaStats struct {
	Total          int64
	Used           int64
	Free           int64
	PercentageUsed float64
}
