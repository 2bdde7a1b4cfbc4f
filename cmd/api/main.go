package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/auth"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/background"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/config"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/database"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/handlers"
	middlewareCustom "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/middleware"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/repositories"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/routes"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/services"
	pkgauth "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/auth"
	pkghttp "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/http"
	pkglogger "github.com/csarlimyah1993/Fletoads-Sidrim-sub000/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// The manager connects lazily; nothing dials the database until the
	// first request (or the migration pass below) needs it.
	db := database.NewManager(&cfg.Database, logger)
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := db.EnsureSchema(migrateCtx); err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		cancelMigrate()
		os.Exit(1)
	}
	cancelMigrate()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	codeRepo := repositories.NewVerificationCodeRepository(db)

	// Session management and cookie policy
	sessionManager := auth.NewSessionManager(cfg.Session.Secret, cfg.Session.MaxAge, userRepo)
	cookiePolicy := auth.NewCookiePolicy(cfg.Server.Env, cfg.Session.CookieDomain, cfg.Server.CanonicalURL, logger)

	totpManager, err := auth.NewTOTPManager([]byte(cfg.MFA.TOTPEncryptionKey), cfg.MFA.Issuer)
	if err != nil {
		logger.Error("failed to initialize totp manager", slog.Any("error", err))
		os.Exit(1)
	}

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 100,
	})

	auditLogger := pkglogger.NewAuditLogger(logger)

	emailService, err := services.NewAWSSESEmailService(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Services
	mfaService := services.NewMFAService(userRepo, codeRepo, totpManager, emailService, cfg.MFA.EmailCodeTTL, logger, auditLogger)
	identityService := services.NewIdentityService(userRepo, logger, auditLogger)
	authService := services.NewAuthService(userRepo, mfaService, sessionManager, identityService, timingDelay, cfg.Session.RequireEmailVerification, logger, auditLogger)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, cookiePolicy, ipConfig, auditLogger)
	mfaHandler := handlers.NewMFAHandler(mfaService)

	// Bootstrap first admin user if configured
	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootstrapCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancelBootstrap()

	// Background cleanup of expired one-time codes
	cleanupManager := background.NewCleanupManager(codeRepo, logger, cfg.MFA.CleanupInterval)

	// Router
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.CanonicalURL)
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, mfaHandler, sessionManager, cookiePolicy, logger)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and
// ADMIN_PASSWORD are set.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return err
	}

	admin, err := userRepo.EnsureAdmin(ctx, adminEmail, hashedPassword, "Admin")
	if err != nil {
		return err
	}
	if admin != nil {
		logger.Info("admin user ensured", slog.String("user_id", admin.ID))
	}
	return nil
}
