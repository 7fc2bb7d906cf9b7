package models

import "time"

// StepUpSession is a short-lived proof of recent second-factor
// verification. The token stays valid for any number of sensitive calls
// until expiry; it is deleted on expiry discovery or by the cleanup sweep.
type StepUpSession struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
