package auth

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SessionCookieName carries the signed session claims.
const SessionCookieName = "fleto_session"

// CookiePolicy fixes the transport attributes of the session cookie.
// HttpOnly is always on and SameSite is always Lax; only the domain scope
// and the Secure flag vary by environment.
type CookiePolicy struct {
	Domain string // empty = current host only
	Secure bool
}

// NewCookiePolicy computes environment-appropriate cookie attributes.
func NewCookiePolicy(env, configuredDomain, canonicalURL string, logger *slog.Logger) CookiePolicy {
	return CookiePolicy{
		Domain: ResolveCookieDomain(env, configuredDomain, canonicalURL, logger),
		Secure: env != "development",
	}
}

// ResolveCookieDomain decides the cookie's domain attribute. Development
// always leaves it unset so sessions work across arbitrary local hostnames
// and ports. Production uses the explicit override when configured,
// otherwise the canonical deployment URL's host with a leading "www."
// stripped. Derivation failure falls back to unset and is logged, not fatal.
func ResolveCookieDomain(env, configuredDomain, canonicalURL string, logger *slog.Logger) string {
	if env == "development" {
		return ""
	}

	if configuredDomain != "" {
		return configuredDomain
	}

	if canonicalURL == "" {
		return ""
	}

	parsed, err := url.Parse(canonicalURL)
	if err != nil || parsed.Hostname() == "" {
		if logger != nil {
			logger.Warn("could not derive cookie domain from canonical URL, leaving unset",
				slog.String("canonical_url", canonicalURL))
		}
		return ""
	}

	return strings.TrimPrefix(parsed.Hostname(), "www.")
}

// SetSessionCookie writes the session artifact. The cookie lifetime tracks
// the claims' expiry, so a refreshed cookie never outlives the token inside.
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, policy CookiePolicy) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   policy.Domain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   policy.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie invalidates the carrier client-side. There is no
// server-side revocation list; expiry is stateless.
func ClearSessionCookie(w http.ResponseWriter, policy CookiePolicy) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   policy.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   policy.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetSessionCookie retrieves the raw session artifact from the request.
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
