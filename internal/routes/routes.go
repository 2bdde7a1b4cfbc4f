package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/auth"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/handlers"
	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	mfaHandler *handlers.MFAHandler,
	sessionManager *auth.SessionManager,
	cookiePolicy auth.CookiePolicy,
	logger *slog.Logger,
) {
	rateLimit := middleware.RateLimitByIP(middleware.DefaultLoginRateLimit())

	// Public sign-in routes; rate limited because they accept credentials
	// and one-time codes.
	router.With(rateLimit).Post("/auth/login", authHandler.Login)
	router.With(rateLimit).Post("/auth/login/email-link", authHandler.LoginWithEmailLink)
	router.With(rateLimit).Post("/auth/oauth/callback", authHandler.OAuthCallback)

	// Session-aware routes: the middleware refreshes claims from the store
	// on every request.
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(sessionManager, cookiePolicy, logger))

		r.Get("/auth/session", authHandler.Session)
		r.Post("/auth/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession)

			r.Post("/auth/mfa/setup", mfaHandler.SetupApp)
			r.With(rateLimit).Post("/auth/mfa/activate", mfaHandler.ActivateApp)
			r.Post("/auth/mfa/email", mfaHandler.EnableEmail)
			r.Post("/auth/mfa/disable", mfaHandler.Disable)
		})
	})
}
