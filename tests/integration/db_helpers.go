package integration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/config"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/database"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/auth"
)

// TestDB manages the PostgreSQL testcontainer and the connection manager
// under test.
type TestDB struct {
	Container testcontainers.Container
	Cfg       *config.DatabaseConfig
	Manager   *database.Manager
}

// SetupTestDatabase starts a PostgreSQL container, points a real connection
// manager at it and applies the embedded migrations through it.
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("fletoads_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	cfg := &config.DatabaseConfig{
		Host:              host,
		Port:              port.Int(),
		User:              "postgres",
		Password:          "postgres",
		Name:              "fletoads_test",
		SSLMode:           "disable",
		MaxConns:          5,
		MinConns:          1,
		MaxConnLifetime:   5 * time.Minute,
		MaxConnIdleTime:   time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    10 * time.Second,
		StatementTimeout:  10 * time.Second,
		MaxRetryAttempts:  3,
		RetryBaseDelay:    50 * time.Millisecond,
	}

	manager := database.NewManager(cfg, slog.Default())
	if err := manager.EnsureSchema(ctx); err != nil {
		manager.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &TestDB{
		Container: container,
		Cfg:       cfg,
		Manager:   manager,
	}, nil
}

// Teardown closes the manager and stops the container
func (db *TestDB) Teardown(ctx context.Context) error {
	db.Manager.Close()
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"verification_codes",
		"users",
	}

	return db.Manager.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		for _, table := range tables {
			if _, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedUser inserts a test user with a hashed password
func (db *TestDB) SeedUser(ctx context.Context, email, password string, verified bool) (*models.User, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:            uuid.New().String(),
		Email:         email,
		PasswordHash:  hashedPassword,
		DisplayName:   "Test User",
		Role:          models.RoleUser,
		Plan:          models.PlanFree,
		EmailVerified: verified,
		MFAMethod:     models.MFAMethodNone,
	}

	err = db.Manager.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, display_name, role, plan, email_verified, mfa_method, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		`, user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Role, user.Plan, user.EmailVerified, user.MFAMethod)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// SeedVerificationCode inserts a hashed one-time code and returns the plain
// code
func (db *TestDB) SeedVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	return db.Manager.WithRetry(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `
			INSERT INTO verification_codes (id, sent_to, code_hash, purpose, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, uuid.New().String(), email, sha256Hash(code), models.CodePurposeMFA, expiresAt)
		return err
	})
}

func sha256Hash(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
