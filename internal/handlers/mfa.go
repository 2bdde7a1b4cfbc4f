package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/auth"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/services"
	pkghttp "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/http"
)

// MFAServiceInterface defines the interface for MFA enrollment management
type MFAServiceInterface interface {
	SetupApp(ctx context.Context, userID string) (*services.TOTPSetup, error)
	ActivateApp(ctx context.Context, userID, code string) error
	EnableEmail(ctx context.Context, userID string) error
	Disable(ctx context.Context, userID string) error
}

// MFAHandler handles MFA enrollment HTTP requests. All routes sit behind
// RequireSession.
type MFAHandler struct {
	service MFAServiceInterface
}

// NewMFAHandler creates a new MFAHandler
func NewMFAHandler(service MFAServiceInterface) *MFAHandler {
	return &MFAHandler{service: service}
}

// ActivateAppRequest carries the first authenticator code
type ActivateAppRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// SetupApp starts app-method enrollment and returns the secret with a QR
// code for the authenticator.
func (h *MFAHandler) SetupApp(w http.ResponseWriter, r *http.Request) {
	claims := auth.CurrentSession(r)

	setup, err := h.service.SetupApp(r.Context(), claims.UserID())
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, setup)
}

// ActivateApp verifies the first code and enables the app method.
func (h *MFAHandler) ActivateApp(w http.ResponseWriter, r *http.Request) {
	claims := auth.CurrentSession(r)

	var req ActivateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ActivateApp(r.Context(), claims.UserID(), req.Code); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "MFA enabled"})
}

// EnableEmail turns on the email method for the current user.
func (h *MFAHandler) EnableEmail(w http.ResponseWriter, r *http.Request) {
	claims := auth.CurrentSession(r)

	if err := h.service.EnableEmail(r.Context(), claims.UserID()); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "MFA enabled"})
}

// Disable turns MFA off for the current user.
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.CurrentSession(r)

	if err := h.service.Disable(r.Context(), claims.UserID()); err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "MFA disabled"})
}
