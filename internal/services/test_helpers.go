package services

import (
	"context"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc              func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc           func(ctx context.Context, email string) (*models.User, error)
	CreateFunc               func(ctx context.Context, user *models.User) (*models.User, error)
	TouchLastLoginFunc       func(ctx context.Context, id string, at time.Time) error
	LinkExternalIdentityFunc func(ctx context.Context, id, providerID, avatarURL string, at time.Time) (*models.User, error)
	SetMFAFunc               func(ctx context.Context, id string, enabled bool, method string, secretEncrypted, nonce []byte) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if m.TouchLastLoginFunc != nil {
		return m.TouchLastLoginFunc(ctx, id, at)
	}
	return nil
}

func (m *MockUserRepository) LinkExternalIdentity(ctx context.Context, id, providerID, avatarURL string, at time.Time) (*models.User, error) {
	if m.LinkExternalIdentityFunc != nil {
		return m.LinkExternalIdentityFunc(ctx, id, providerID, avatarURL, at)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) SetMFA(ctx context.Context, id string, enabled bool, method string, secretEncrypted, nonce []byte) error {
	if m.SetMFAFunc != nil {
		return m.SetMFAFunc(ctx, id, enabled, method, secretEncrypted, nonce)
	}
	return nil
}

// MockVerificationCodeRepository implements VerificationCodeRepository for testing
type MockVerificationCodeRepository struct {
	CreateFunc         func(ctx context.Context, sentTo, codeHash, purpose string, expiresAt time.Time) (*models.VerificationCode, error)
	ConsumeFunc        func(ctx context.Context, sentTo, codeHash, purpose string) error
	DeleteBySentToFunc func(ctx context.Context, sentTo, purpose string) error
}

func (m *MockVerificationCodeRepository) Create(ctx context.Context, sentTo, codeHash, purpose string, expiresAt time.Time) (*models.VerificationCode, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, sentTo, codeHash, purpose, expiresAt)
	}
	return &models.VerificationCode{SentTo: sentTo, CodeHash: codeHash, Purpose: purpose, ExpiresAt: expiresAt}, nil
}

func (m *MockVerificationCodeRepository) Consume(ctx context.Context, sentTo, codeHash, purpose string) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, sentTo, codeHash, purpose)
	}
	return models.ErrNotFound
}

func (m *MockVerificationCodeRepository) DeleteBySentTo(ctx context.Context, sentTo, purpose string) error {
	if m.DeleteBySentToFunc != nil {
		return m.DeleteBySentToFunc(ctx, sentTo, purpose)
	}
	return nil
}

// MockMFAGate implements MFAGate for testing
type MockMFAGate struct {
	VerifyAppCodeFunc    func(ctx context.Context, user *models.User, code string) error
	ConsumeEmailCodeFunc func(ctx context.Context, email, code string) error
	IssueEmailCodeFunc   func(ctx context.Context, email string) error
}

func (m *MockMFAGate) VerifyAppCode(ctx context.Context, user *models.User, code string) error {
	if m.VerifyAppCodeFunc != nil {
		return m.VerifyAppCodeFunc(ctx, user, code)
	}
	return nil
}

func (m *MockMFAGate) ConsumeEmailCode(ctx context.Context, email, code string) error {
	if m.ConsumeEmailCodeFunc != nil {
		return m.ConsumeEmailCodeFunc(ctx, email, code)
	}
	return nil
}

func (m *MockMFAGate) IssueEmailCode(ctx context.Context, email string) error {
	if m.IssueEmailCodeFunc != nil {
		return m.IssueEmailCodeFunc(ctx, email)
	}
	return nil
}

// MockSessionIssuer implements SessionIssuer for testing
type MockSessionIssuer struct {
	IssueFunc func(user *models.User) (string, *models.SessionClaims, error)
}

func (m *MockSessionIssuer) Issue(user *models.User) (string, *models.SessionClaims, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(user)
	}
	claims := &models.SessionClaims{
		Role:        user.Role,
		Plan:        user.Plan,
		Permissions: user.Permissions,
		TenantRef:   user.TenantRef,
		DisplayName: user.DisplayName,
	}
	claims.Subject = user.ID
	return "session_token_" + user.ID, claims, nil
}

// MockIdentityLinker implements IdentityLinker for testing
type MockIdentityLinker struct {
	LinkOrCreateFunc func(ctx context.Context, externalID, email, displayName, avatarURL string) (*models.User, error)
}

func (m *MockIdentityLinker) LinkOrCreate(ctx context.Context, externalID, email, displayName, avatarURL string) (*models.User, error) {
	if m.LinkOrCreateFunc != nil {
		return m.LinkOrCreateFunc(ctx, externalID, email, displayName, avatarURL)
	}
	return nil, models.ErrExternalLinkFailure
}

// MockEmailSender implements EmailSender for testing
type MockEmailSender struct {
	SendMFACodeFunc func(ctx context.Context, email, code string, ttl time.Duration) error
	SentCodes       []string
}

func (m *MockEmailSender) SendMFACode(ctx context.Context, email, code string, ttl time.Duration) error {
	if m.SendMFACodeFunc != nil {
		return m.SendMFACodeFunc(ctx, email, code, ttl)
	}
	m.SentCodes = append(m.SentCodes, code)
	return nil
}

// NoopTimingWaiter skips the anti-enumeration delay so tests run fast
type NoopTimingWaiter struct{}

func (NoopTimingWaiter) Wait(success bool) {}

// NewTestUser creates an active password user
func NewTestUser(id, email, displayName, passwordHash string) *models.User {
	now := time.Now()
	return &models.User{
		ID:            id,
		Email:         email,
		PasswordHash:  passwordHash,
		DisplayName:   displayName,
		Role:          models.RoleUser,
		Plan:          models.PlanFree,
		Permissions:   []string{"flyers:read"},
		EmailVerified: true,
		MFAMethod:     models.MFAMethodNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewTestUserWithMFA creates a user with the given MFA method enabled
func NewTestUserWithMFA(id, email, displayName, passwordHash, method string, secretEncrypted, nonce []byte) *models.User {
	user := NewTestUser(id, email, displayName, passwordHash)
	user.MFAEnabled = true
	user.MFAMethod = method
	user.MFASecretEncrypted = secretEncrypted
	user.MFASecretNonce = nonce
	return user
}
