package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	pkgauth "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/auth"
	pkglogger "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/logger"
)

// UserRepository defines the user store operations the services need.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	LinkExternalIdentity(ctx context.Context, id, providerID, avatarURL string, at time.Time) (*models.User, error)
	SetMFA(ctx context.Context, id string, enabled bool, method string, secretEncrypted, nonce []byte) error
}

// SessionIssuer mints signed session artifacts for an authenticated user.
type SessionIssuer interface {
	Issue(user *models.User) (string, *models.SessionClaims, error)
}

// MFAGate verifies one-time codes on the login path and issues email codes
// when an email-method account reaches the gate without one.
type MFAGate interface {
	VerifyAppCode(ctx context.Context, user *models.User, code string) error
	ConsumeEmailCode(ctx context.Context, email, code string) error
	IssueEmailCode(ctx context.Context, email string) error
}

// IdentityLinker resolves an external-provider sign-in to a local user.
type IdentityLinker interface {
	LinkOrCreate(ctx context.Context, externalID, email, displayName, avatarURL string) (*models.User, error)
}

// TimingWaiter pads the latency of credential checks so failure modes are
// indistinguishable to a remote observer.
type TimingWaiter interface {
	Wait(success bool)
}

// LoginStatus tags a login outcome that is not an error: the caller is
// expected to act on the status rather than treat it as a failure.
type LoginStatus string

const (
	// StatusOK means a session was issued.
	StatusOK LoginStatus = "ok"
	// StatusMFARequired means credentials were valid but a one-time code is
	// needed; the caller retries with a code, not with fresh credentials.
	StatusMFARequired LoginStatus = "mfa_required"
	// StatusEmailVerificationRequired means credentials were valid but the
	// account's email has not been verified and policy demands it.
	StatusEmailVerificationRequired LoginStatus = "email_verification_required"
)

// SessionPayload carries the signed artifact plus what the handler needs to
// set the cookie and render the user.
type SessionPayload struct {
	Token  string
	Claims *models.SessionClaims
	User   *models.User
}

// LoginResult is the outcome of a login attempt. Session is set only when
// Status is StatusOK; MFAMethod is set only when Status is StatusMFARequired.
type LoginResult struct {
	Status    LoginStatus
	Session   *SessionPayload
	MFAMethod string
}

// AuthService verifies credentials, runs the multi-factor gate and issues
// sessions.
type AuthService struct {
	users                    UserRepository
	mfa                      MFAGate
	sessions                 SessionIssuer
	identities               IdentityLinker
	timing                   TimingWaiter
	requireEmailVerification bool
	logger                   *slog.Logger
	auditLogger              *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserRepository, mfa MFAGate, sessions SessionIssuer, identities IdentityLinker, timing TimingWaiter, requireEmailVerification bool, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		users:                    users,
		mfa:                      mfa,
		sessions:                 sessions,
		identities:               identities,
		timing:                   timing,
		requireEmailVerification: requireEmailVerification,
		logger:                   logger,
		auditLogger:              auditLogger,
	}
}

// Login authenticates a user with email and password, then drives the
// multi-factor gate. mfaCode may be empty on the first attempt; accounts
// with MFA enabled get StatusMFARequired back and retry with a code.
func (s *AuthService) Login(ctx context.Context, email, password, mfaCode string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Pay the hash cost anyway: skipping it would make an unknown
			// email measurably faster than a wrong password.
			pkgauth.CompareDecoyPassword(password)
			s.failLogin("", "invalid_credentials")
			return nil, models.ErrInvalidCredentials
		}
		if errors.Is(err, models.ErrStoreUnavailable) {
			return nil, err
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// External-identity-only accounts have no hash to compare. Same generic
	// rejection and the same decoy hash cost as an unknown email, so the
	// account's existence leaks nothing.
	if !user.HasPassword() {
		pkgauth.CompareDecoyPassword(password)
		s.failLogin(user.ID, "invalid_credentials")
		return nil, models.ErrInvalidCredentials
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.failLogin(user.ID, "invalid_credentials")
		return nil, models.ErrInvalidCredentials
	}
	s.timing.Wait(true)

	if s.requireEmailVerification && !user.EmailVerified {
		s.logger.Info("login pending email verification", slog.String("user_id", user.ID))
		return &LoginResult{Status: StatusEmailVerificationRequired}, nil
	}

	if user.MFAEnabled {
		result, err := s.runMFAGate(ctx, user, mfaCode)
		if result != nil || err != nil {
			return result, err
		}
	}

	return s.finishLogin(ctx, user)
}

// runMFAGate returns a non-nil result or error when the gate stops the
// login; (nil, nil) means the code verified and login may proceed.
func (s *AuthService) runMFAGate(ctx context.Context, user *models.User, mfaCode string) (*LoginResult, error) {
	if mfaCode == "" {
		if user.MFAMethod == models.MFAMethodEmail {
			if err := s.mfa.IssueEmailCode(ctx, user.Email); err != nil {
				if errors.Is(err, models.ErrStoreUnavailable) {
					return nil, err
				}
				s.logger.Error("failed to issue mfa email code",
					slog.String("user_id", user.ID), slog.Any("error", err))
				return nil, models.ErrInternalServer
			}
		}
		s.logger.Info("login requires mfa code",
			slog.String("user_id", user.ID),
			slog.String("method", user.MFAMethod))
		return &LoginResult{Status: StatusMFARequired, MFAMethod: user.MFAMethod}, nil
	}

	var err error
	switch user.MFAMethod {
	case models.MFAMethodApp:
		err = s.mfa.VerifyAppCode(ctx, user, mfaCode)
	case models.MFAMethodEmail:
		err = s.mfa.ConsumeEmailCode(ctx, user.Email, mfaCode)
	default:
		s.logger.Error("mfa enabled with unknown method",
			slog.String("user_id", user.ID),
			slog.String("method", user.MFAMethod))
		err = models.ErrInternalServer
	}
	if err != nil {
		if errors.Is(err, models.ErrMFAInvalid) {
			s.failLogin(user.ID, "mfa_invalid")
		}
		return nil, err
	}
	return nil, nil
}

// LoginWithVerifiedEmail issues a session for a caller who has already
// proven ownership of the email through the email-link flow. No password is
// checked and the multi-factor gate does not apply.
func (s *AuthService) LoginWithVerifiedEmail(ctx context.Context, email string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.failLogin("", "unknown_verified_email")
			return nil, models.ErrInvalidCredentials
		}
		if errors.Is(err, models.ErrStoreUnavailable) {
			return nil, err
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	s.timing.Wait(true)

	return s.finishLogin(ctx, user)
}

// LoginWithExternalIdentity resolves an external-provider callback to a
// local user (linking or creating one) and issues a session.
func (s *AuthService) LoginWithExternalIdentity(ctx context.Context, providerID, email, displayName, avatarURL string) (*LoginResult, error) {
	user, err := s.identities.LinkOrCreate(ctx, providerID, email, displayName, avatarURL)
	if err != nil {
		return nil, err
	}

	// LinkOrCreate already stamped last_login_at.
	return s.issueSession(user)
}

func (s *AuthService) finishLogin(ctx context.Context, user *models.User) (*LoginResult, error) {
	if err := s.users.TouchLastLogin(ctx, user.ID, time.Now()); err != nil {
		// The user is authenticated; a stale last_login_at is not worth
		// failing the login over.
		s.logger.Warn("failed to update last_login_at",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return s.issueSession(user)
}

func (s *AuthService) issueSession(user *models.User) (*LoginResult, error) {
	token, claims, err := s.sessions.Issue(user)
	if err != nil {
		s.logger.Error("failed to issue session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Success:   true,
	})

	return &LoginResult{
		Status: StatusOK,
		Session: &SessionPayload{
			Token:  token,
			Claims: claims,
			User:   user.Sanitized(),
		},
	}, nil
}

func (s *AuthService) failLogin(userID, reason string) {
	s.timing.Wait(false)
	s.logger.Info("login failed", slog.String("reason", reason))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		UserID:        userID,
		FailureReason: reason,
		Success:       false,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
