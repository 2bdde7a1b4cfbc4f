package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/handlers"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestMFASetupApp(t *testing.T) {
	handler := handlers.NewMFAHandler(&handlers.MockMFAService{
		SetupAppFunc: func(ctx context.Context, userID string) (*services.TOTPSetup, error) {
			assert.Equal(t, "user123", userID)
			return &services.TOTPSetup{Secret: "BASE32SECRET", QRCodeURL: "data:image/png;base64,AAAA"}, nil
		},
	})

	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/setup", nil)
	req = handlers.WithSessionContext(req, "user123")

	w := httptest.NewRecorder()
	handler.SetupApp(w, req)

	var resp services.TOTPSetup
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "BASE32SECRET", resp.Secret)
	assert.NotEmpty(t, resp.QRCodeURL)
}

func TestMFAActivateApp(t *testing.T) {
	var gotCode string
	handler := handlers.NewMFAHandler(&handlers.MockMFAService{
		ActivateAppFunc: func(ctx context.Context, userID, code string) error {
			gotCode = code
			return nil
		},
	})

	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/activate", handlers.ActivateAppRequest{Code: "123456"})
	req = handlers.WithSessionContext(req, "user123")

	w := httptest.NewRecorder()
	handler.ActivateApp(w, req)

	handlers.AssertJSONResponse(t, w, 200, nil)
	assert.Equal(t, "123456", gotCode)
}

func TestMFAActivateApp_WrongCode(t *testing.T) {
	handler := handlers.NewMFAHandler(&handlers.MockMFAService{
		ActivateAppFunc: func(ctx context.Context, userID, code string) error {
			return models.ErrMFAInvalid
		},
	})

	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/activate", handlers.ActivateAppRequest{Code: "000000"})
	req = handlers.WithSessionContext(req, "user123")

	w := httptest.NewRecorder()
	handler.ActivateApp(w, req)

	handlers.AssertErrorResponse(t, w, 401, "mfa_invalid")
}

func TestMFAActivateApp_BadCodeFormat(t *testing.T) {
	handler := handlers.NewMFAHandler(&handlers.MockMFAService{
		ActivateAppFunc: func(ctx context.Context, userID, code string) error {
			t.Fatal("service must not be called on invalid input")
			return nil
		},
	})

	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/activate", handlers.ActivateAppRequest{Code: "12ab56"})
	req = handlers.WithSessionContext(req, "user123")

	w := httptest.NewRecorder()
	handler.ActivateApp(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestMFAEnableEmailAndDisable(t *testing.T) {
	var enabled, disabled bool
	handler := handlers.NewMFAHandler(&handlers.MockMFAService{
		EnableEmailFunc: func(ctx context.Context, userID string) error {
			enabled = true
			return nil
		},
		DisableFunc: func(ctx context.Context, userID string) error {
			disabled = true
			return nil
		},
	})

	req := handlers.NewTestRequest(t, "POST", "/auth/mfa/email", nil)
	req = handlers.WithSessionContext(req, "user123")
	w := httptest.NewRecorder()
	handler.EnableEmail(w, req)
	handlers.AssertJSONResponse(t, w, 200, nil)
	assert.True(t, enabled)

	req = handlers.NewTestRequest(t, "POST", "/auth/mfa/disable", nil)
	req = handlers.WithSessionContext(req, "user123")
	w = httptest.NewRecorder()
	handler.Disable(w, req)
	handlers.AssertJSONResponse(t, w, 200, nil)
	assert.True(t, disabled)
}
