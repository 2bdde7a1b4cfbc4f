package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	pkglogger "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdentityService(users UserRepository) *IdentityService {
	logger := slog.Default()
	return NewIdentityService(users, logger, pkglogger.NewAuditLogger(logger))
}

func TestIdentityService_LinkOrCreate_LinksExistingUser(t *testing.T) {
	existing := NewTestUser("user123", "ana@example.com", "Ana Original", testHash(t))
	existing.Role = models.RoleAdmin
	existing.Plan = "pro"

	var linkedID, linkedProvider, linkedAvatar string
	svc := newTestIdentityService(&MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			assert.Equal(t, "ana@example.com", email)
			return existing, nil
		},
		LinkExternalIdentityFunc: func(ctx context.Context, id, providerID, avatarURL string, at time.Time) (*models.User, error) {
			linkedID, linkedProvider, linkedAvatar = id, providerID, avatarURL
			updated := *existing
			updated.ExternalProviderID = providerID
			updated.AvatarURL = avatarURL
			updated.LastLoginAt = &at
			return &updated, nil
		},
	})

	// Provider sends a different display name; it must not win.
	user, err := svc.LinkOrCreate(context.Background(), "google-oauth2|555", "Ana@Example.COM", "Ana From Google", "https://cdn.example.com/a.png")

	require.NoError(t, err)
	assert.Equal(t, "user123", linkedID)
	assert.Equal(t, "google-oauth2|555", linkedProvider)
	assert.Equal(t, "https://cdn.example.com/a.png", linkedAvatar)
	assert.Equal(t, "Ana Original", user.DisplayName)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Equal(t, "pro", user.Plan)
	assert.Empty(t, user.PasswordHash)
}

func TestIdentityService_LinkOrCreate_CreatesNewUser(t *testing.T) {
	var created *models.User
	svc := newTestIdentityService(&MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			created = user
			user.ID = "user456"
			return user, nil
		},
	})

	user, err := svc.LinkOrCreate(context.Background(), "google-oauth2|555", "novo@example.com", "Novo Usuario", "")

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.Equal(t, models.PlanFree, created.Plan)
	assert.False(t, created.MFAEnabled)
	assert.True(t, created.EmailVerified)
	assert.NotNil(t, created.LastLoginAt)
	assert.Equal(t, "user456", user.ID)
}

func TestIdentityService_LinkOrCreate_WriteFailure(t *testing.T) {
	svc := newTestIdentityService(&MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, errors.New("insert failed")
		},
	})

	user, err := svc.LinkOrCreate(context.Background(), "google-oauth2|555", "novo@example.com", "Novo", "")

	assert.ErrorIs(t, err, models.ErrExternalLinkFailure)
	assert.Nil(t, user)
}

func TestIdentityService_LinkOrCreate_StoreUnavailableStaysDistinct(t *testing.T) {
	svc := newTestIdentityService(&MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, models.ErrStoreUnavailable
		},
	})

	_, err := svc.LinkOrCreate(context.Background(), "google-oauth2|555", "ana@example.com", "Ana", "")

	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, models.ErrExternalLinkFailure)
}

func TestIdentityService_LinkOrCreate_RejectsEmptyIdentity(t *testing.T) {
	svc := newTestIdentityService(&MockUserRepository{})

	_, err := svc.LinkOrCreate(context.Background(), "", "ana@example.com", "Ana", "")
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = svc.LinkOrCreate(context.Background(), "google-oauth2|555", "  ", "Ana", "")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}
