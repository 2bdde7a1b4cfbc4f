package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/auth"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	pkglogger "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/logger"
)

// VerificationCodeRepository defines the one-time-code store operations.
type VerificationCodeRepository interface {
	Create(ctx context.Context, sentTo, codeHash, purpose string, expiresAt time.Time) (*models.VerificationCode, error)
	Consume(ctx context.Context, sentTo, codeHash, purpose string) error
	DeleteBySentTo(ctx context.Context, sentTo, purpose string) error
}

// EmailSender delivers one-time codes to users.
type EmailSender interface {
	SendMFACode(ctx context.Context, email, code string, ttl time.Duration) error
}

// TOTPSetup is returned from app-method enrollment so the user can register
// the secret in their authenticator.
type TOTPSetup struct {
	Secret    string `json:"secret"`
	QRCodeURL string `json:"qr_code_url"`
}

// MFAService manages multi-factor enrollment and verifies one-time codes on
// the login path. App-method secrets live encrypted on the user record; the
// email method stores only hashed short-lived codes.
type MFAService struct {
	users       UserRepository
	codes       VerificationCodeRepository
	totp        *auth.TOTPManager
	sender      EmailSender
	codeTTL     time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewMFAService creates a new MFAService.
func NewMFAService(users UserRepository, codes VerificationCodeRepository, totp *auth.TOTPManager, sender EmailSender, codeTTL time.Duration, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *MFAService {
	return &MFAService{
		users:       users,
		codes:       codes,
		totp:        totp,
		sender:      sender,
		codeTTL:     codeTTL,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// SetupApp generates a fresh TOTP secret for the user and stores it
// encrypted, but does not enable MFA yet: the user must prove the
// authenticator works by activating with a first code.
func (s *MFAService) SetupApp(ctx context.Context, userID string) (*TOTPSetup, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	encrypted, nonce, plainSecret, qrURL, err := s.totp.GenerateSecretWithQR(user.Email)
	if err != nil {
		s.logger.Error("failed to generate totp secret", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.users.SetMFA(ctx, userID, false, models.MFAMethodApp, encrypted, nonce); err != nil {
		return nil, err
	}

	s.logger.Info("mfa app enrollment started", slog.String("user_id", userID))
	return &TOTPSetup{Secret: plainSecret, QRCodeURL: qrURL}, nil
}

// ActivateApp verifies the first code from the user's authenticator and
// turns the app method on.
func (s *MFAService) ActivateApp(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFAMethod != models.MFAMethodApp || len(user.MFASecretEncrypted) == 0 {
		return models.ErrBadRequest
	}

	if err := s.VerifyAppCode(ctx, user, code); err != nil {
		return err
	}

	if err := s.users.SetMFA(ctx, userID, true, models.MFAMethodApp, user.MFASecretEncrypted, user.MFASecretNonce); err != nil {
		return err
	}

	s.logger.Info("mfa app method activated", slog.String("user_id", userID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "mfa_enabled",
		UserID:    userID,
		Success:   true,
	})
	return nil
}

// EnableEmail turns on the email method. The login email is already the
// delivery address, so there is no secret to enroll.
func (s *MFAService) EnableEmail(ctx context.Context, userID string) error {
	if err := s.users.SetMFA(ctx, userID, true, models.MFAMethodEmail, nil, nil); err != nil {
		return err
	}

	s.logger.Info("mfa email method activated", slog.String("user_id", userID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "mfa_enabled",
		UserID:    userID,
		Success:   true,
	})
	return nil
}

// Disable turns MFA off and discards any enrolled secret.
func (s *MFAService) Disable(ctx context.Context, userID string) error {
	if err := s.users.SetMFA(ctx, userID, false, models.MFAMethodNone, nil, nil); err != nil {
		return err
	}

	s.logger.Info("mfa disabled", slog.String("user_id", userID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "mfa_disabled",
		UserID:    userID,
		Success:   true,
	})
	return nil
}

// VerifyAppCode checks a time-window code against the user's encrypted TOTP
// secret. Any mismatch is ErrMFAInvalid.
func (s *MFAService) VerifyAppCode(ctx context.Context, user *models.User, code string) error {
	if len(user.MFASecretEncrypted) == 0 {
		s.logger.Error("app mfa verification without enrolled secret", slog.String("user_id", user.ID))
		return models.ErrInternalServer
	}

	valid, err := s.totp.ValidateCode(user.MFASecretEncrypted, user.MFASecretNonce, code)
	if err != nil {
		s.logger.Error("totp validation error", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !valid {
		return models.ErrMFAInvalid
	}
	return nil
}

// IssueEmailCode generates a fresh six-digit code for the address, replacing
// any outstanding one, and delivers it. Only the SHA-256 of the code is
// stored.
func (s *MFAService) IssueEmailCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	code, err := generateNumericCode(6)
	if err != nil {
		s.logger.Error("failed to generate mfa code", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// One outstanding code per address: a new login attempt invalidates the
	// previous code.
	if err := s.codes.DeleteBySentTo(ctx, email, models.CodePurposeMFA); err != nil {
		return err
	}

	expiresAt := time.Now().Add(s.codeTTL)
	if _, err := s.codes.Create(ctx, email, hashCode(code), models.CodePurposeMFA, expiresAt); err != nil {
		return err
	}

	if err := s.sender.SendMFACode(ctx, email, code, s.codeTTL); err != nil {
		s.logger.Error("failed to send mfa code",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send mfa code: %w", err)
	}

	s.logger.Info("mfa email code issued", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

// ConsumeEmailCode atomically matches and deletes an unexpired code for the
// address. A second use of the same code, an expired code and a wrong code
// all fail identically with ErrMFAInvalid.
func (s *MFAService) ConsumeEmailCode(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)

	err := s.codes.Consume(ctx, email, hashCode(code), models.CodePurposeMFA)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrMFAInvalid
		}
		return err
	}
	return nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func generateNumericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
