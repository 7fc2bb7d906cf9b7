// Package twofactor implements the second-factor primitives: RFC 6238
// time-based one-time passwords and one-time backup codes.
package twofactor

import (
	"encoding/base32"
	"net/url"
	"regexp"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpSecretSize = 20
)

var codeFormat = regexp.MustCompile(`^[0-9]{6}$`)

// GenerateSecret returns a fresh random TOTP seed as an unpadded base32
// string, suitable for a 30-second-step, 6-digit authenticator.
func GenerateSecret() string {
	raw := common.GenerateRandByteArray(totpSecretSize)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
}

// ProvisioningURI builds the otpauth://totp/ URI encoding the secret,
// account label, and issuer for consumption by a QR-code renderer.
func ProvisioningURI(secret, accountLabel, issuerLabel string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuerLabel)
	v.Set("algorithm", "SHA1")
	v.Set("digits", "6")
	v.Set("period", "30")

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + issuerLabel + ":" + accountLabel,
		RawQuery: v.Encode(),
	}
	return u.String()
}

// VerifyCode checks a submitted 6-digit code against the secret, tolerating
// one 30-second step of clock skew in either direction. Codes that are not
// exactly six digits, wrong codes and wrong secrets all return false;
// VerifyCode never returns an error to the caller.
func VerifyCode(code, secret string) bool {
	if !IsValidFormat(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// IsValidFormat reports whether code is exactly six ASCII digits.
func IsValidFormat(code string) bool {
	return codeFormat.MatchString(code)
}
