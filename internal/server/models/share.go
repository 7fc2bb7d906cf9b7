package models

import "time"

// Permission is the closed set of share permission levels. READ allows
// inline viewing only; READ_WRITE additionally allows download with
// attachment semantics.
type Permission string

const (
	PermissionRead      Permission = "READ"
	PermissionReadWrite Permission = "READ_WRITE"
)

// Valid reports whether p is one of the defined permission levels.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionReadWrite
}

// FileShare grants access to a stored file. A public share has a nil
// TargetUserID and a non-nil bearer Token; a private share has a non-nil
// TargetUserID and a nil Token. Expired shares are treated as absent by
// all read paths but are not eagerly deleted.
type FileShare struct {
	ID           string
	FileID       string
	GrantedBy    string
	TargetUserID *string
	Permission   Permission
	Token        *string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
}

// Public reports whether the share is a token-based public grant.
func (s *FileShare) Public() bool {
	return s.TargetUserID == nil
}

// Expired reports whether the share carries an expiry in the past.
func (s *FileShare) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}
