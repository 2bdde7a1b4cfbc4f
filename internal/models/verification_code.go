package models

import (
	"time"
)

// Verification code purposes.
const (
	CodePurposeMFA = "mfa"
)

// VerificationCode is a short-lived, single-use emailed code. Only the
// SHA-256 hash of the code is stored; consumption is an atomic
// check-and-delete so a code can never be replayed by a concurrent request.
type VerificationCode struct {
	ID        string
	SentTo    string // lowercased email the code was sent to
	CodeHash  string // hex SHA-256 of the plain code
	Purpose   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the code is past its expiry.
func (c *VerificationCode) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
