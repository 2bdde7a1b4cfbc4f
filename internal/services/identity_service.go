package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	pkglogger "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/logger"
)

// IdentityService resolves external-provider sign-ins (OAuth callbacks) to
// local user records.
type IdentityService struct {
	users       UserRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(users UserRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *IdentityService {
	return &IdentityService{
		users:       users,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// LinkOrCreate looks the user up by email and links the external identity to
// the existing record, or creates a fresh one when no record exists.
//
// On an existing record only external_provider_id, avatar_url and
// last_login_at change: display_name, role, plan and permissions belong to
// the user and their administrators, never to the external provider.
func (s *IdentityService) LinkOrCreate(ctx context.Context, externalID, email, displayName, avatarURL string) (*models.User, error) {
	email = normalizeEmail(email)
	if externalID == "" || email == "" {
		return nil, models.ErrBadRequest
	}

	now := time.Now()

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		linked, err := s.users.LinkExternalIdentity(ctx, existing.ID, externalID, avatarURL, now)
		if err != nil {
			s.auditLogger.LogIdentityLink(existing.ID, "oauth", false, false)
			return nil, s.linkFailure("failed to link external identity", existing.ID, err)
		}
		s.auditLogger.LogIdentityLink(linked.ID, "oauth", false, true)
		return linked.Sanitized(), nil

	case errors.Is(err, models.ErrNotFound):
		user := &models.User{
			Email:              email,
			DisplayName:        displayName,
			AvatarURL:          avatarURL,
			ExternalProviderID: externalID,
			Role:               models.RoleUser,
			Plan:               models.PlanFree,
			// The provider vouched for the address.
			EmailVerified: true,
			MFAEnabled:    false,
			MFAMethod:     models.MFAMethodNone,
			LastLoginAt:   &now,
		}
		created, err := s.users.Create(ctx, user)
		if err != nil {
			s.auditLogger.LogIdentityLink("", "oauth", true, false)
			return nil, s.linkFailure("failed to create user for external identity", "", err)
		}
		s.logger.Info("user created from external identity", slog.String("user_id", created.ID))
		s.auditLogger.LogIdentityLink(created.ID, "oauth", true, true)
		return created.Sanitized(), nil

	case errors.Is(err, models.ErrStoreUnavailable):
		return nil, err

	default:
		return nil, s.linkFailure("failed to look up user for external identity", "", err)
	}
}

func (s *IdentityService) linkFailure(msg, userID string, err error) error {
	if userID != "" {
		s.logger.Error(msg, slog.String("user_id", userID), slog.Any("error", err))
	} else {
		s.logger.Error(msg, slog.Any("error", err))
	}
	if errors.Is(err, models.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrExternalLinkFailure, err)
}
