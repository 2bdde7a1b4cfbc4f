package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the signed session artifact. Every field except Subject,
// IssuedAt, ExpiresAt and ID is a projection of the current User record and
// is overwritten on each refresh; the claims are never a source of truth.
type SessionClaims struct {
	Role        string   `json:"role"`
	Plan        string   `json:"plan"`
	Permissions []string `json:"permissions,omitempty"`
	TenantRef   string   `json:"tenant_ref,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject, the stable user identifier.
func (c *SessionClaims) UserID() string {
	return c.Subject
}
