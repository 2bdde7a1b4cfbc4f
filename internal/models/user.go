package models

import (
	"time"
)

// MFA methods a user can enable for their password login.
const (
	MFAMethodNone  = "none"
	MFAMethodApp   = "app"
	MFAMethodEmail = "email"
)

// Roles and the default subscription plan assigned on first sign-in.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	PlanFree = "free"
)

// User is the identity and authorization source of truth. Role, plan and
// permissions are mutated by administrative flows elsewhere in the system;
// this subsystem only reads them into session claims and stamps LastLoginAt.
type User struct {
	ID                 string
	Email              string // stored lowercased, unique
	PasswordHash       string // empty for external-identity-only users
	DisplayName        string
	AvatarURL          string
	Role               string // "user", "admin"
	Plan               string
	Permissions        []string
	TenantRef          string // optional reference to an owned store
	ExternalProviderID string
	EmailVerified      bool
	MFAEnabled         bool
	MFAMethod          string // "none", "app", "email"
	MFASecretEncrypted []byte // AES-256-GCM ciphertext, app method only
	MFASecretNonce     []byte
	LastLoginAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasPassword reports whether the account can authenticate with a password
// at all. External-identity-only accounts have no stored hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Sanitized returns a copy safe to hand outside the credential verifier.
func (u *User) Sanitized() *User {
	clone := *u
	clone.PasswordHash = ""
	clone.MFASecretEncrypted = nil
	clone.MFASecretNonce = nil
	return &clone
}
