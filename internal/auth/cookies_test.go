package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCookieDomain_DevelopmentAlwaysUnset(t *testing.T) {
	logger := slog.Default()

	assert.Equal(t, "", ResolveCookieDomain("development", "", "", logger))
	assert.Equal(t, "", ResolveCookieDomain("development", "fletoads.com", "https://fletoads.com", logger))
}

func TestResolveCookieDomain_ProductionExplicitOverride(t *testing.T) {
	got := ResolveCookieDomain("production", "app.fletoads.com", "https://www.other.com", slog.Default())
	assert.Equal(t, "app.fletoads.com", got)
}

func TestResolveCookieDomain_ProductionStripsWWW(t *testing.T) {
	got := ResolveCookieDomain("production", "", "https://www.fletoads.com", slog.Default())
	assert.Equal(t, "fletoads.com", got)

	got = ResolveCookieDomain("production", "", "https://fletoads.com/painel", slog.Default())
	assert.Equal(t, "fletoads.com", got)
}

func TestResolveCookieDomain_DerivationFailureFallsBackUnset(t *testing.T) {
	assert.Equal(t, "", ResolveCookieDomain("production", "", "", slog.Default()))
	assert.Equal(t, "", ResolveCookieDomain("production", "", "://bad url", slog.Default()))
}

func TestNewCookiePolicy_TransportAttributes(t *testing.T) {
	dev := NewCookiePolicy("development", "", "", slog.Default())
	assert.False(t, dev.Secure)

	prod := NewCookiePolicy("production", "", "https://www.fletoads.com", slog.Default())
	assert.True(t, prod.Secure)
	assert.Equal(t, "fletoads.com", prod.Domain)
}

func TestSetSessionCookie_Attributes(t *testing.T) {
	w := httptest.NewRecorder()
	SetSessionCookie(w, "tok", time.Now().Add(time.Hour), CookiePolicy{Secure: true})

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)

	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Greater(t, c.MaxAge, 0)
}

func TestClearSessionCookie_Deletes(t *testing.T) {
	w := httptest.NewRecorder()
	ClearSessionCookie(w, CookiePolicy{})

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}
