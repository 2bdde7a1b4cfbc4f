package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserFetcher retrieves the current user record during claim refresh.
type UserFetcher interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// SessionManager issues signed session claims and re-derives them from the
// store on every use. Claims are a projection of the user record, never a
// source of truth: a role or plan change takes effect on the holder's next
// request, not when the token finally expires.
type SessionManager struct {
	secret []byte
	maxAge time.Duration
	users  UserFetcher
}

// NewSessionManager creates a SessionManager signing with HS256.
func NewSessionManager(secret string, maxAge time.Duration, users UserFetcher) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		maxAge: maxAge,
		users:  users,
	}
}

// MaxAge returns the configured maximum session lifetime.
func (sm *SessionManager) MaxAge() time.Duration {
	return sm.maxAge
}

// Issue projects the user record into signed claims stamped with the full
// session lifetime.
func (sm *SessionManager) Issue(user *models.User) (string, *models.SessionClaims, error) {
	now := time.Now()
	claims := &models.SessionClaims{
		Role:        user.Role,
		Plan:        user.Plan,
		Permissions: user.Permissions,
		TenantRef:   user.TenantRef,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.maxAge)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := sm.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Refresh verifies the artifact, re-reads the user record and overwrites the
// mutable projection fields while preserving the subject and the original
// issuance identity (iat, exp, jti). A missing user fails closed with
// ErrSessionInvalid; store outages surface as ErrStoreUnavailable so the
// caller can distinguish "session is bad" from "store is down".
func (sm *SessionManager) Refresh(ctx context.Context, tokenString string) (string, *models.SessionClaims, error) {
	claims, err := sm.Parse(tokenString)
	if err != nil {
		return "", nil, err
	}

	user, err := sm.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", nil, models.ErrSessionInvalid
		}
		if errors.Is(err, models.ErrStoreUnavailable) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("session refresh: %w", err)
	}

	refreshed := &models.SessionClaims{
		Role:             user.Role,
		Plan:             user.Plan,
		Permissions:      user.Permissions,
		TenantRef:        user.TenantRef,
		DisplayName:      user.DisplayName,
		RegisteredClaims: claims.RegisteredClaims,
	}

	token, err := sm.sign(refreshed)
	if err != nil {
		return "", nil, err
	}
	return token, refreshed, nil
}

// Parse verifies signature and lifetime without touching the store.
func (sm *SessionManager) Parse(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return sm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrSessionExpired
		}
		return nil, models.ErrSessionInvalid
	}

	if !token.Valid || claims.Subject == "" {
		return nil, models.ErrSessionInvalid
	}

	return claims, nil
}

func (sm *SessionManager) sign(claims *models.SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(sm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}
