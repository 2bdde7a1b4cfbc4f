package database

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/config"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/database/migrations"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

// Manager owns the process-wide cached connection to the user/session
// store. It is created once by the composition root and injected into
// repositories; there is no package-level handle. The first Acquire
// establishes the connection, everything after that reuses the cached pool.
type Manager struct {
	cfg    *config.DatabaseConfig
	logger *slog.Logger

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// NewManager creates a Manager. No connection is opened until Acquire.
func NewManager(cfg *config.DatabaseConfig, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// Acquire returns the cached pool, connecting on first use. It is safe for
// concurrent callers: the write lock serializes establishment, so concurrent
// first-callers wait for the winner instead of racing to open duplicate
// connections. Steady-state callers take only a read lock.
func (m *Manager) Acquire(ctx context.Context) (*pgxpool.Pool, error) {
	m.mu.RLock()
	if m.pool != nil {
		pool := m.pool
		m.mu.RUnlock()
		return pool, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have connected while we waited for the lock.
	if m.pool != nil {
		return m.pool, nil
	}

	pool, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	m.pool = pool
	return pool, nil
}

// poolConfigFrom parses the DSN and applies the configured overrides. Zero
// values keep pgxpool's parsed defaults; HealthCheckPeriod in particular must
// never reach the pool as zero, its background goroutine tickers on it and a
// zero period panics the process.
func poolConfigFrom(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.StatementTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] =
			strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	return poolConfig, nil
}

func (m *Manager) connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := poolConfigFrom(m.cfg)
	if err != nil {
		return nil, err
	}

	dialTimeout := m.cfg.ConnectTimeout
	if dialTimeout <= 0 {
		dialTimeout = 30 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	m.logger.Info("database connection established",
		slog.Int("max_conns", int(m.cfg.MaxConns)),
		slog.Int("min_conns", int(m.cfg.MinConns)),
	)

	return pool, nil
}

// Reset drops a poisoned handle so the next Acquire reconnects.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
		m.logger.Warn("database connection handle dropped, will reconnect on next acquire")
	}
}

// WithRetry runs op against a verified handle, retrying transient failures
// with exponential backoff (baseDelay * 2^n between attempts) up to the
// configured attempt budget. Connection-level failures drop the cached
// handle so the next attempt reconnects. Errors surfaced to the caller are
// final: either a terminal domain error, or ErrStoreUnavailable wrapping the
// last transient error after retries are exhausted.
func (m *Manager) WithRetry(ctx context.Context, op func(ctx context.Context, pool *pgxpool.Pool) error) error {
	maxAttempts := m.cfg.MaxRetryAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewExponential(m.cfg.RetryBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		pool, err := m.Acquire(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}

		if err := op(ctx, pool); err != nil {
			if !IsTransient(err) {
				return err
			}
			if isConnectionError(err) {
				m.Reset()
			}
			return retry.RetryableError(err)
		}
		return nil
	})

	if err == nil {
		return nil
	}
	if !IsTransient(err) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}

// EnsureSchema creates required tables if absent. Idempotent, safe to call
// on every startup.
func (m *Manager) EnsureSchema(ctx context.Context) error {
	pool, err := m.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// HealthCheck pings the store with a short deadline.
func (m *Manager) HealthCheck(ctx context.Context) error {
	pool, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close releases the cached pool, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil {
		m.logger.Info("closing database connection pool")
		m.pool.Close()
		m.pool = nil
	}
}

// Stats exposes pool statistics for the health endpoint. Returns nil before
// the first Acquire.
func (m *Manager) Stats() *pgxpool.Stat {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.pool == nil {
		return nil
	}
	return m.pool.Stat()
}
