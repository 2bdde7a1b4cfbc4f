package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/csarlimyah1993/Fletoads-Sidrim-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMiddleware_RefreshesClaimsEveryRequest(t *testing.T) {
	user := testUser()
	fetcher := &mockUserFetcher{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	sm := NewSessionManager(testSecret, time.Hour, fetcher)

	token, _, err := sm.Issue(user)
	require.NoError(t, err)

	var seen *models.SessionClaims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CurrentSession(r)
	})
	handler := SessionMiddleware(sm, CookiePolicy{}, slog.Default())(inner)

	user.Plan = "pro" // administrative change between issue and next request

	r := httptest.NewRequest("GET", "/painel", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.NotNil(t, seen)
	assert.Equal(t, "pro", seen.Plan)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestSessionMiddleware_NoCookiePassesThrough(t *testing.T) {
	fetcher := &mockUserFetcher{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			t.Fatal("store must not be hit without a session cookie")
			return nil, nil
		},
	}
	sm := NewSessionManager(testSecret, time.Hour, fetcher)

	var seen *models.SessionClaims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CurrentSession(r)
	})
	handler := SessionMiddleware(sm, CookiePolicy{}, slog.Default())(inner)

	r := httptest.NewRequest("GET", "/painel", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Nil(t, seen)
	assert.Empty(t, w.Result().Cookies())
}

func TestSessionMiddleware_InvalidSessionClearsCookie(t *testing.T) {
	fetcher := &mockUserFetcher{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}
	sm := NewSessionManager(testSecret, time.Hour, fetcher)

	token, _, err := sm.Issue(testUser())
	require.NoError(t, err)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, CurrentSession(r))
	})
	handler := SessionMiddleware(sm, CookiePolicy{}, slog.Default())(inner)

	r := httptest.NewRequest("GET", "/painel", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestSessionMiddleware_StoreOutageKeepsCookie(t *testing.T) {
	fetcher := &mockUserFetcher{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return nil, models.ErrStoreUnavailable
		},
	}
	sm := NewSessionManager(testSecret, time.Hour, fetcher)

	token, _, err := sm.Issue(testUser())
	require.NoError(t, err)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, CurrentSession(r))
	})
	handler := SessionMiddleware(sm, CookiePolicy{}, slog.Default())(inner)

	r := httptest.NewRequest("GET", "/painel", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	// The session itself is fine; do not log the user out over an outage.
	assert.Empty(t, w.Result().Cookies())
}

func TestRequireSession(t *testing.T) {
	handler := RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/auth/mfa/setup", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	claims := &models.SessionClaims{}
	r = httptest.NewRequest("GET", "/auth/mfa/setup", nil)
	r = r.WithContext(WithSession(r.Context(), claims))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}
