package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

// sessionContextKey is the key for storing refreshed session claims in context
const sessionContextKey contextKey = "session"

// SessionMiddleware refreshes the session claims from the store on every
// request carrying the cookie, so authorization changes propagate without
// re-login. Invalid or expired sessions get their cookie cleared and the
// request proceeds unauthenticated; a store outage leaves the cookie intact
// so the session survives transient infrastructure failures.
func SessionMiddleware(sm *SessionManager, policy CookiePolicy, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := GetSessionCookie(r)
			if err != nil || raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, claims, err := sm.Refresh(r.Context(), raw)
			if err != nil {
				switch {
				case errors.Is(err, models.ErrStoreUnavailable):
					logger.Error("session refresh unavailable", slog.Any("error", err))
				case errors.Is(err, models.ErrSessionExpired), errors.Is(err, models.ErrSessionInvalid):
					ClearSessionCookie(w, policy)
				default:
					logger.Error("session refresh failed", slog.Any("error", err))
					ClearSessionCookie(w, policy)
				}
				next.ServeHTTP(w, r)
				return
			}

			SetSessionCookie(w, token, claims.ExpiresAt.Time, policy)

			ctx := context.WithValue(r.Context(), sessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests that did not present a valid session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentSession(r) == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentSession is the unsigned read API: it returns the claims refreshed
// by SessionMiddleware, or nil when the request is unauthenticated.
func CurrentSession(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(sessionContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// WithSession injects claims into a context; used by tests and internal
// callers that bypass the HTTP middleware.
func WithSession(ctx context.Context, claims *models.SessionClaims) context.Context {
	return context.WithValue(ctx, sessionContextKey, claims)
}
