package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/auth"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/services"
	pkghttp "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/http"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext adds session claims to the request context for testing
// endpoints behind RequireSession
func WithSessionContext(req *http.Request, userID string) *http.Request {
	claims := &models.SessionClaims{
		Role: models.RoleUser,
		Plan: models.PlanFree,
	}
	claims.Subject = userID
	return req.WithContext(auth.WithSession(req.Context(), claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// NewTestLoginResult builds a StatusOK result for a user
func NewTestLoginResult(userID, email string) *services.LoginResult {
	user := &models.User{
		ID:          userID,
		Email:       email,
		DisplayName: "Test User",
		Role:        models.RoleUser,
		Plan:        models.PlanFree,
		Permissions: []string{"flyers:read"},
	}
	claims := &models.SessionClaims{
		Role:        user.Role,
		Plan:        user.Plan,
		Permissions: user.Permissions,
		DisplayName: user.DisplayName,
	}
	claims.Subject = userID
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	return &services.LoginResult{
		Status: services.StatusOK,
		Session: &services.SessionPayload{
			Token:  "session_token_" + userID,
			Claims: claims,
			User:   user,
		},
	}
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc                     func(ctx context.Context, email, password, mfaCode string) (*services.LoginResult, error)
	LoginWithVerifiedEmailFunc    func(ctx context.Context, email string) (*services.LoginResult, error)
	LoginWithExternalIdentityFunc func(ctx context.Context, providerID, email, displayName, avatarURL string) (*services.LoginResult, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, mfaCode string) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, mfaCode)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) LoginWithVerifiedEmail(ctx context.Context, email string) (*services.LoginResult, error) {
	if m.LoginWithVerifiedEmailFunc != nil {
		return m.LoginWithVerifiedEmailFunc(ctx, email)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) LoginWithExternalIdentity(ctx context.Context, providerID, email, displayName, avatarURL string) (*services.LoginResult, error) {
	if m.LoginWithExternalIdentityFunc != nil {
		return m.LoginWithExternalIdentityFunc(ctx, providerID, email, displayName, avatarURL)
	}
	return nil, models.ErrExternalLinkFailure
}

// MockMFAService implements MFAServiceInterface for testing
type MockMFAService struct {
	SetupAppFunc    func(ctx context.Context, userID string) (*services.TOTPSetup, error)
	ActivateAppFunc func(ctx context.Context, userID, code string) error
	EnableEmailFunc func(ctx context.Context, userID string) error
	DisableFunc     func(ctx context.Context, userID string) error
}

func (m *MockMFAService) SetupApp(ctx context.Context, userID string) (*services.TOTPSetup, error) {
	if m.SetupAppFunc != nil {
		return m.SetupAppFunc(ctx, userID)
	}
	return &services.TOTPSetup{Secret: "SECRET", QRCodeURL: "data:image/png;base64,AAAA"}, nil
}

func (m *MockMFAService) ActivateApp(ctx context.Context, userID, code string) error {
	if m.ActivateAppFunc != nil {
		return m.ActivateAppFunc(ctx, userID, code)
	}
	return nil
}

func (m *MockMFAService) EnableEmail(ctx context.Context, userID string) error {
	if m.EnableEmailFunc != nil {
		return m.EnableEmailFunc(ctx, userID)
	}
	return nil
}

func (m *MockMFAService) Disable(ctx context.Context, userID string) error {
	if m.DisableFunc != nil {
		return m.DisableFunc(ctx, userID)
	}
	return nil
}
