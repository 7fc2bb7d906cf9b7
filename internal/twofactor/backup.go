package twofactor

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// BackupCodeCount is the default number of one-time recovery codes issued
// when the second factor is enabled.
const BackupCodeCount = 10

var backupCodeSpan = big.NewInt(90_000_000)

// GenerateBackupCodes returns count distinct 8-digit numeric codes drawn
// uniformly from [10000000, 99999999].
func GenerateBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)

	for len(codes) < count {
		n, err := rand.Int(rand.Reader, backupCodeSpan)
		if err != nil {
			return nil, fmt.Errorf("generating backup code: %w", err)
		}
		code := fmt.Sprintf("%d", n.Int64()+10_000_000)
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// HashBackupCode hashes a code with bcrypt. Each call salts independently,
// so two hashes of the same code differ; codes therefore compare 1:1
// against their own hash only.
func HashBackupCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// MatchBackupCode returns the index of the first hash in hashes matching
// code, or -1 when none match. The caller removes exactly the matched
// entry to enforce one-time use.
func MatchBackupCode(code string, hashes []string) int {
	for i, h := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(code)) == nil {
			return i
		}
	}
	return -1
}

// VerifyBackupCode reports whether code matches any entry in hashes.
func VerifyBackupCode(code string, hashes []string) bool {
	return MatchBackupCode(code, hashes) >= 0
}
