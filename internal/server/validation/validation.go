// Package validation is the upload policy gate: size ceiling, MIME type
// allow-list and file name checks. All checks are pure and run before
// anything is persisted.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxFileSize is the plaintext size ceiling. The boundary value itself
	// is accepted.
	MaxFileSize = 100 << 20 // 100 MiB

	// MaxNameLength is the longest accepted file name in runes, not
	// bytes. Exactly 255 is allowed.
	MaxNameLength = 255
)

var (
	ErrFileTooLarge   = errors.New("file too large")
	ErrTypeNotAllowed = errors.New("file type not allowed")
	ErrInvalidName    = errors.New("invalid file name")
)

// Document types allowed in addition to the image/* and text/* families.
var allowedDocumentTypes = map[string]struct{}{
	"application/json": {},
	"application/pdf":  {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"application/vnd.ms-powerpoint": {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
}

// CheckSize rejects plaintext longer than MaxFileSize.
func CheckSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds the %d-byte limit", ErrFileTooLarge, size, int64(MaxFileSize))
	}
	return nil
}

// CheckMimeType allows any image/* or text/* type plus a fixed set of
// document types.
func CheckMimeType(mimeType string) error {
	if strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "text/") {
		return nil
	}
	if _, ok := allowedDocumentTypes[mimeType]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTypeNotAllowed, mimeType)
}

// CheckName rejects empty names, names carrying path separators or
// parent-directory sequences, and names longer than MaxNameLength.
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q contains path characters", ErrInvalidName, name)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidName, MaxNameLength)
	}
	return nil
}

// Validate runs the three checks in order (size, type, name) and returns
// the first failure, or nil when the upload passes the policy gate.
func Validate(size int64, mimeType, name string) error {
	if err := CheckSize(size); err != nil {
		return err
	}
	if err := CheckMimeType(mimeType); err != nil {
		return err
	}
	return CheckName(name)
}
