package repositories

import (
	"context"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/database"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VerificationCodeRepository stores the short-lived emailed codes used by
// the email MFA method. Codes are stored hashed and consumed atomically.
type VerificationCodeRepository struct {
	db *database.Manager
}

func NewVerificationCodeRepository(db *database.Manager) *VerificationCodeRepository {
	return &VerificationCodeRepository{db: db}
}

func (r *VerificationCodeRepository) Create(ctx context.Context, sentTo, codeHash, purpose string, expiresAt time.Time) (*models.VerificationCode, error) {
	code := &models.VerificationCode{
		ID:        uuid.New().String(),
		SentTo:    sentTo,
		CodeHash:  codeHash,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO verification_codes (id, sent_to, code_hash, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	err := r.db.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, query,
			code.ID, code.SentTo, code.CodeHash, code.Purpose, code.ExpiresAt, code.CreatedAt)
		return database.MapPostgresError(err)
	})
	if err != nil {
		return nil, err
	}
	return code, nil
}

// Consume deletes a matching unexpired code and reports whether one
// existed. Check and delete are a single statement, so two concurrent
// submissions of the same code cannot both succeed.
func (r *VerificationCodeRepository) Consume(ctx context.Context, sentTo, codeHash, purpose string) error {
	query := `
		DELETE FROM verification_codes
		WHERE sent_to = $1 AND code_hash = $2 AND purpose = $3 AND expires_at > NOW()`

	return r.db.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		result, err := pool.Exec(ctx, query, sentTo, codeHash, purpose)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

// DeleteBySentTo drops all pending codes for an email, used before issuing
// a fresh code so only the latest one is valid.
func (r *VerificationCodeRepository) DeleteBySentTo(ctx context.Context, sentTo, purpose string) error {
	query := `DELETE FROM verification_codes WHERE sent_to = $1 AND purpose = $2`

	return r.db.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, query, sentTo, purpose)
		return database.MapPostgresError(err)
	})
}

// CleanupExpired removes codes past their expiry. Expired codes are already
// rejected on lookup; this keeps the table from growing unbounded.
func (r *VerificationCodeRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM verification_codes WHERE expires_at <= NOW()`

	var deleted int64
	err := r.db.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		result, err := pool.Exec(ctx, query)
		if err != nil {
			return database.MapPostgresError(err)
		}
		deleted = result.RowsAffected()
		return nil
	})
	return deleted, err
}
