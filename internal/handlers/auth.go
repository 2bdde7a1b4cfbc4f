package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/auth"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/services"
	pkghttp "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/http"
	pkglogger "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/logger"
)

// AuthServiceInterface defines the interface for login business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, mfaCode string) (*services.LoginResult, error)
	LoginWithVerifiedEmail(ctx context.Context, email string) (*services.LoginResult, error)
	LoginWithExternalIdentity(ctx context.Context, providerID, email, displayName, avatarURL string) (*services.LoginResult, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service     AuthServiceInterface
	cookies     auth.CookiePolicy
	ipConfig    *pkghttp.IPConfig
	auditLogger *pkglogger.AuditLogger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, cookies auth.CookiePolicy, ipConfig *pkghttp.IPConfig, auditLogger *pkglogger.AuditLogger) *AuthHandler {
	return &AuthHandler{
		service:     service,
		cookies:     cookies,
		ipConfig:    ipConfig,
		auditLogger: auditLogger,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfa_code" validate:"omitempty,len=6,numeric"`
}

// EmailLinkLoginRequest represents the email-link sign-in callback body
type EmailLinkLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// OAuthCallbackRequest represents the external-provider callback body
type OAuthCallbackRequest struct {
	ProviderID  string `json:"provider_id" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url"`
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	DisplayName   string   `json:"display_name"`
	AvatarURL     string   `json:"avatar_url,omitempty"`
	Role          string   `json:"role"`
	Plan          string   `json:"plan"`
	Permissions   []string `json:"permissions"`
	TenantRef     string   `json:"tenant_ref,omitempty"`
	EmailVerified bool     `json:"email_verified"`
	MFAEnabled    bool     `json:"mfa_enabled"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	Status string        `json:"status"`
	User   *UserResponse `json:"user,omitempty"`
	// Method is set when Status is "mfa_required"
	Method string `json:"method,omitempty"`
}

// SessionResponse represents the current session's claims
type SessionResponse struct {
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Role        string   `json:"role"`
	Plan        string   `json:"plan"`
	Permissions []string `json:"permissions"`
	TenantRef   string   `json:"tenant_ref,omitempty"`
	ExpiresAt   string   `json:"expires_at"`
}

// Login handles password login, including the MFA retry round-trip.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.MFACode)
	if err != nil {
		h.auditLoginFailure(r, err)
		writeAuthError(w, err)
		return
	}

	h.writeLoginResult(w, result)
}

// auditLoginFailure records a rejected login with the caller's network
// identity. Credential and code failures are the interesting ones here;
// infrastructure errors already log through the service layer.
func (h *AuthHandler) auditLoginFailure(r *http.Request, err error) {
	if !errors.Is(err, models.ErrInvalidCredentials) && !errors.Is(err, models.ErrMFAInvalid) {
		return
	}

	reason := "invalid_credentials"
	if errors.Is(err, models.ErrMFAInvalid) {
		reason = "mfa_invalid"
	}
	h.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login",
		IPAddress:     pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: reason,
	})
}

// LoginWithEmailLink handles the email-link sign-in callback. The caller has
// already proven ownership of the address; no password travels here.
func (h *AuthHandler) LoginWithEmailLink(w http.ResponseWriter, r *http.Request) {
	var req EmailLinkLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.LoginWithVerifiedEmail(r.Context(), req.Email)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	h.writeLoginResult(w, result)
}

// OAuthCallback handles the external-provider sign-in callback.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	var req OAuthCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.LoginWithExternalIdentity(r.Context(), req.ProviderID, req.Email, req.DisplayName, req.AvatarURL)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	h.writeLoginResult(w, result)
}

// Session returns the claims refreshed by the session middleware.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims := auth.CurrentSession(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "No active session")
		return
	}

	resp := SessionResponse{
		UserID:      claims.UserID(),
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
		Plan:        claims.Plan,
		Permissions: claims.Permissions,
		TenantRef:   claims.TenantRef,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.Format(time.RFC3339)
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Logout clears the session cookie. The artifact is self-contained, so
// invalidation is client-side only.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if claims := auth.CurrentSession(r); claims != nil {
		userID = claims.UserID()
	}

	auth.ClearSessionCookie(w, h.cookies)
	h.auditLogger.LogSessionEvent("logout", userID, true)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *AuthHandler) writeLoginResult(w http.ResponseWriter, result *services.LoginResult) {
	switch result.Status {
	case services.StatusOK:
		expiresAt := time.Now()
		if result.Session.Claims.ExpiresAt != nil {
			expiresAt = result.Session.Claims.ExpiresAt.Time
		}
		auth.SetSessionCookie(w, result.Session.Token, expiresAt, h.cookies)
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
			Status: "ok",
			User:   userModelToResponse(result.Session.User),
		})

	case services.StatusMFARequired:
		// A retry signal, not a failure: the caller re-submits with a code.
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
			Status: string(services.StatusMFARequired),
			Method: result.MFAMethod,
		})

	case services.StatusEmailVerificationRequired:
		pkghttp.WriteError(w, http.StatusForbidden, "email_verification_required",
			"Verify your email address before signing in")

	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// writeAuthError maps service errors onto the wire. Credential failures stay
// generic; infrastructure failures must not masquerade as them.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, "Invalid email or password")
	case errors.Is(err, models.ErrMFAInvalid):
		pkghttp.WriteError(w, http.StatusUnauthorized, "mfa_invalid", "Invalid or expired code")
	case errors.Is(err, models.ErrStoreUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable, try again later")
	case errors.Is(err, models.ErrExternalLinkFailure):
		pkghttp.WriteBadGateway(w, "Could not complete external sign-in")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Not found")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		AvatarURL:     user.AvatarURL,
		Role:          user.Role,
		Plan:          user.Plan,
		Permissions:   user.Permissions,
		TenantRef:     user.TenantRef,
		EmailVerified: user.EmailVerified,
		MFAEnabled:    user.MFAEnabled,
	}
}
