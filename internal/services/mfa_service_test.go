package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"testing"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/auth"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	pkglogger "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/logger"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

func newTestMFAService(t *testing.T, users UserRepository, codes VerificationCodeRepository, sender EmailSender) *MFAService {
	t.Helper()
	tm, err := auth.NewTOTPManager(testEncryptionKey, "FletoAds")
	require.NoError(t, err)
	logger := slog.Default()
	return NewMFAService(users, codes, tm, sender, 10*time.Minute, logger, pkglogger.NewAuditLogger(logger))
}

func TestMFAService_SetupApp_StoresSecretDisabled(t *testing.T) {
	user := NewTestUser("user123", "ana@example.com", "Ana", testHash(t))

	var storedEnabled bool
	var storedMethod string
	var storedSecret []byte
	svc := newTestMFAService(t, &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		SetMFAFunc: func(ctx context.Context, id string, enabled bool, method string, secretEncrypted, nonce []byte) error {
			storedEnabled = enabled
			storedMethod = method
			storedSecret = secretEncrypted
			return nil
		},
	}, &MockVerificationCodeRepository{}, &MockEmailSender{})

	setup, err := svc.SetupApp(context.Background(), "user123")

	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.QRCodeURL, "data:image/png;base64,")
	assert.False(t, storedEnabled, "setup must not enable mfa before activation")
	assert.Equal(t, models.MFAMethodApp, storedMethod)
	assert.NotEmpty(t, storedSecret)
}

func TestMFAService_ActivateApp(t *testing.T) {
	tm, err := auth.NewTOTPManager(testEncryptionKey, "FletoAds")
	require.NoError(t, err)
	encrypted, nonce, plainSecret, _, err := tm.GenerateSecretWithQR("ana@example.com")
	require.NoError(t, err)

	user := NewTestUser("user123", "ana@example.com", "Ana", testHash(t))
	user.MFAMethod = models.MFAMethodApp
	user.MFASecretEncrypted = encrypted
	user.MFASecretNonce = nonce

	var enabled bool
	svc := newTestMFAService(t, &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		SetMFAFunc: func(ctx context.Context, id string, en bool, method string, secretEncrypted, n []byte) error {
			enabled = en
			assert.Equal(t, models.MFAMethodApp, method)
			assert.Equal(t, encrypted, secretEncrypted)
			return nil
		},
	}, &MockVerificationCodeRepository{}, &MockEmailSender{})

	code, err := totp.GenerateCode(plainSecret, time.Now())
	require.NoError(t, err)

	require.NoError(t, svc.ActivateApp(context.Background(), "user123", code))
	assert.True(t, enabled)

	err = svc.ActivateApp(context.Background(), "user123", "000000")
	assert.ErrorIs(t, err, models.ErrMFAInvalid)
}

func TestMFAService_ActivateApp_WithoutSetup(t *testing.T) {
	user := NewTestUser("user123", "ana@example.com", "Ana", testHash(t))

	svc := newTestMFAService(t, &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}, &MockVerificationCodeRepository{}, &MockEmailSender{})

	err := svc.ActivateApp(context.Background(), "user123", "123456")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestMFAService_EnableEmailAndDisable(t *testing.T) {
	type setCall struct {
		enabled bool
		method  string
	}
	var calls []setCall
	svc := newTestMFAService(t, &MockUserRepository{
		SetMFAFunc: func(ctx context.Context, id string, enabled bool, method string, secretEncrypted, nonce []byte) error {
			calls = append(calls, setCall{enabled, method})
			assert.Nil(t, secretEncrypted)
			return nil
		},
	}, &MockVerificationCodeRepository{}, &MockEmailSender{})

	require.NoError(t, svc.EnableEmail(context.Background(), "user123"))
	require.NoError(t, svc.Disable(context.Background(), "user123"))

	require.Len(t, calls, 2)
	assert.Equal(t, setCall{true, models.MFAMethodEmail}, calls[0])
	assert.Equal(t, setCall{false, models.MFAMethodNone}, calls[1])
}

func TestMFAService_IssueEmailCode(t *testing.T) {
	var storedHash, storedPurpose string
	var storedExpiry time.Time
	var deleted bool
	sender := &MockEmailSender{}

	svc := newTestMFAService(t, &MockUserRepository{}, &MockVerificationCodeRepository{
		DeleteBySentToFunc: func(ctx context.Context, sentTo, purpose string) error {
			deleted = true
			return nil
		},
		CreateFunc: func(ctx context.Context, sentTo, codeHash, purpose string, expiresAt time.Time) (*models.VerificationCode, error) {
			assert.Equal(t, "ana@example.com", sentTo)
			storedHash = codeHash
			storedPurpose = purpose
			storedExpiry = expiresAt
			return &models.VerificationCode{}, nil
		},
	}, sender)

	err := svc.IssueEmailCode(context.Background(), "Ana@Example.com")

	require.NoError(t, err)
	assert.True(t, deleted, "an outstanding code must be replaced")
	assert.Equal(t, models.CodePurposeMFA, storedPurpose)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), storedExpiry, 5*time.Second)

	// Only the hash reaches the store; the plain code reaches the sender.
	require.Len(t, sender.SentCodes, 1)
	code := sender.SentCodes[0]
	assert.Len(t, code, 6)
	sum := sha256.Sum256([]byte(code))
	assert.Equal(t, hex.EncodeToString(sum[:]), storedHash)
}

func TestMFAService_ConsumeEmailCode(t *testing.T) {
	var consumedHash string
	svc := newTestMFAService(t, &MockUserRepository{}, &MockVerificationCodeRepository{
		ConsumeFunc: func(ctx context.Context, sentTo, codeHash, purpose string) error {
			consumedHash = codeHash
			assert.Equal(t, "ana@example.com", sentTo)
			assert.Equal(t, models.CodePurposeMFA, purpose)
			return nil
		},
	}, &MockEmailSender{})

	err := svc.ConsumeEmailCode(context.Background(), "Ana@Example.com", "123456")

	require.NoError(t, err)
	sum := sha256.Sum256([]byte("123456"))
	assert.Equal(t, hex.EncodeToString(sum[:]), consumedHash)
}

func TestMFAService_ConsumeEmailCode_Invalid(t *testing.T) {
	svc := newTestMFAService(t, &MockUserRepository{}, &MockVerificationCodeRepository{
		ConsumeFunc: func(ctx context.Context, sentTo, codeHash, purpose string) error {
			return models.ErrNotFound
		},
	}, &MockEmailSender{})

	// Wrong, expired and already-consumed codes are indistinguishable.
	err := svc.ConsumeEmailCode(context.Background(), "ana@example.com", "999999")
	assert.ErrorIs(t, err, models.ErrMFAInvalid)
}

func TestMFAService_ConsumeEmailCode_StoreUnavailable(t *testing.T) {
	svc := newTestMFAService(t, &MockUserRepository{}, &MockVerificationCodeRepository{
		ConsumeFunc: func(ctx context.Context, sentTo, codeHash, purpose string) error {
			return models.ErrStoreUnavailable
		},
	}, &MockEmailSender{})

	err := svc.ConsumeEmailCode(context.Background(), "ana@example.com", "123456")
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}
