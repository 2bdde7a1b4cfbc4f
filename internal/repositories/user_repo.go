package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/database"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const userColumns = `id, email, password_hash, display_name, avatar_url, role, plan, permissions,
	tenant_ref, external_provider_id, email_verified, mfa_enabled, mfa_method,
	mfa_secret_encrypted, mfa_secret_nonce, last_login_at, created_at, updated_at`

// UserRepository reads and writes user records through the connection
// manager, so every operation inherits its retry/backoff behavior.
type UserRepository struct {
	db *database.Manager
}

func NewUserRepository(db *database.Manager) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner interface for scanning user rows (single row or rows iterator)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash, avatarURL, tenantRef, externalProviderID *string
	var lastLoginAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Email, &passwordHash, &user.DisplayName, &avatarURL,
		&user.Role, &user.Plan, pq.Array(&user.Permissions),
		&tenantRef, &externalProviderID, &user.EmailVerified,
		&user.MFAEnabled, &user.MFAMethod,
		&user.MFASecretEncrypted, &user.MFASecretNonce,
		&lastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	if avatarURL != nil {
		user.AvatarURL = *avatarURL
	}
	if tenantRef != nil {
		user.TenantRef = *tenantRef
	}
	if externalProviderID != nil {
		user.ExternalProviderID = *externalProviderID
	}
	user.LastLoginAt = lastLoginAt

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user *models.User
	err := r.db.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		u, err := scanUserRow(pool.QueryRow(ctx, query, id))
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	return user, err
}

// GetByEmail looks up by the canonical (lowercased) email. Callers normalize
// before calling; the insert path stores emails lowercased.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user *models.User
	err := r.db.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		u, err := scanUserRow(pool.QueryRow(ctx, query, email))
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	return user, err
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}
	if user.MFAMethod == "" {
		user.MFAMethod = models.MFAMethodNone
	}
	if user.Permissions == nil {
		user.Permissions = []string{}
	}

	query := `
		INSERT INTO users (id, email, password_hash, display_name, avatar_url, role, plan, permissions,
			tenant_ref, external_provider_id, email_verified, mfa_enabled, mfa_method, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + userColumns

	var passwordHash, avatarURL, tenantRef, externalProviderID *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}
	if user.AvatarURL != "" {
		avatarURL = &user.AvatarURL
	}
	if user.TenantRef != "" {
		tenantRef = &user.TenantRef
	}
	if user.ExternalProviderID != "" {
		externalProviderID = &user.ExternalProviderID
	}

	var created *models.User
	err := r.db.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		u, err := scanUserRow(pool.QueryRow(ctx, query,
			user.ID, user.Email, passwordHash, user.DisplayName, avatarURL,
			user.Role, user.Plan, pq.Array(user.Permissions),
			tenantRef, externalProviderID, user.EmailVerified,
			user.MFAEnabled, user.MFAMethod, user.LastLoginAt,
			user.CreatedAt, user.UpdatedAt,
		))
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	return created, err
}

// TouchLastLogin stamps last_login_at without touching any other field.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1, updated_at = $2 WHERE id = $3`

	return r.db.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		result, err := pool.Exec(ctx, query, at, time.Now(), id)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

// LinkExternalIdentity is a field-level partial update: it sets only the
// external provider reference, avatar and login stamp, never display name,
// role, plan or permissions.
func (r *UserRepository) LinkExternalIdentity(ctx context.Context, id, providerID, avatarURL string, at time.Time) (*models.User, error) {
	query := `
		UPDATE users
		SET external_provider_id = $1,
		    avatar_url = COALESCE(NULLIF($2, ''), avatar_url),
		    last_login_at = $3,
		    updated_at = $4
		WHERE id = $5
		RETURNING ` + userColumns

	var updated *models.User
	err := r.db.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		u, err := scanUserRow(pool.QueryRow(ctx, query, providerID, avatarURL, at, time.Now(), id))
		if err != nil {
			return err
		}
		updated = u
		return nil
	})
	return updated, err
}

// SetMFA enables or disables multi-factor authentication for a user. The
// encrypted secret and nonce are only stored for the app method.
func (r *UserRepository) SetMFA(ctx context.Context, id string, enabled bool, method string, secretEncrypted, nonce []byte) error {
	query := `
		UPDATE users
		SET mfa_enabled = $1, mfa_method = $2, mfa_secret_encrypted = $3, mfa_secret_nonce = $4, updated_at = $5
		WHERE id = $6`

	return r.db.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		result, err := pool.Exec(ctx, query, enabled, method, secretEncrypted, nonce, time.Now(), id)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

// UpdateProfile is used by administrative flows outside this subsystem; it
// exists here so integration tests can mutate role/plan/permissions and
// observe claim refresh behavior.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, role, plan string, permissions []string) error {
	if permissions == nil {
		permissions = []string{}
	}
	query := `UPDATE users SET role = $1, plan = $2, permissions = $3, updated_at = $4 WHERE id = $5`

	return r.db.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		result, err := pool.Exec(ctx, query, role, plan, pq.Array(permissions), time.Now(), id)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

// EnsureAdmin creates the bootstrap admin account when absent.
func (r *UserRepository) EnsureAdmin(ctx context.Context, email, passwordHash, displayName string) (*models.User, error) {
	// Emails are stored lowercase; login normalizes before lookup, so a
	// mixed-case seed here would create an account nobody can sign in to.
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := r.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to check for existing admin: %w", err)
	}

	return r.Create(ctx, &models.User{
		Email:         email,
		PasswordHash:  passwordHash,
		DisplayName:   displayName,
		Role:          models.RoleAdmin,
		EmailVerified: true,
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
