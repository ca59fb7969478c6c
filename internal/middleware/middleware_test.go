package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymhub.np/internal/db"
	"gymhub.np/internal/metrics"
	"gymhub.np/internal/models"
)

var userColumns = []string{"id", "name", "email", "password_hash", "role_id", "role_name", "current_plan_id", "created_at", "updated_at"}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func withUser(r *http.Request, role string) *http.Request {
	user := &models.User{ID: "usr_1", RoleName: &role}
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
}

// sessionCookie runs a request that stores userID in a fresh session and returns its cookie.
func sessionCookie(t *testing.T, sm *scs.SessionManager, userID string) *http.Cookie {
	t.Helper()
	login := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.Put(r.Context(), string(UserIDContextKey), userID)
	}))
	rec := httptest.NewRecorder()
	login.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

// ==========================
// Authentication
// ==========================

func TestRequireAuthentication_NoSession(t *testing.T) {
	sm := scs.New()
	h := sm.LoadAndSave(RequireAuthentication(sm)(okHandler()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
}

func TestRequireAuthentication_LoadsUser(t *testing.T) {
	mock := db.SetupMockDB(t)
	sm := scs.New()
	cookie := sessionCookie(t, sm, "usr_1")

	now := time.Now()
	mock.ExpectQuery(`WHERE u.id = \?`).WithArgs("usr_1").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("usr_1", "Ram", "ram@gym.np", "hash", 1, "user", nil, now, now))

	var seen *models.User
	h := sm.LoadAndSave(RequireAuthentication(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "ram@gym.np", seen.Email)
}

func TestRequireAuthentication_MissingUser(t *testing.T) {
	mock := db.SetupMockDB(t)
	sm := scs.New()
	cookie := sessionCookie(t, sm, "usr_gone")

	mock.ExpectQuery(`WHERE u.id = \?`).WithArgs("usr_gone").WillReturnRows(sqlmock.NewRows(userColumns))

	h := sm.LoadAndSave(RequireAuthentication(sm)(okHandler()))
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(models.RoleAdmin)(okHandler())

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"no user", httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil), http.StatusUnauthorized},
		{"member", withUser(httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil), models.RoleUser), http.StatusUnauthorized},
		{"admin", withUser(httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil), models.RoleAdmin), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

// ==========================
// Membership gate
// ==========================

func TestRequireActiveSubscription(t *testing.T) {
	subColumns := []string{"id", "user_id", "plan_id", "plan_name", "amount", "reference_id", "status",
		"start_date", "end_date", "last_notified_at", "created_at", "updated_at"}

	t.Run("no membership", func(t *testing.T) {
		mock := db.SetupMockDB(t)
		mock.ExpectQuery(`FROM user_subscriptions WHERE user_id = \?`).WillReturnRows(sqlmock.NewRows(subColumns))

		rec := httptest.NewRecorder()
		RequireActiveSubscription(okHandler()).ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/me/access", nil), models.RoleUser))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("active membership", func(t *testing.T) {
		mock := db.SetupMockDB(t)
		now := time.Now()
		mock.ExpectQuery(`FROM user_subscriptions WHERE user_id = \?`).WillReturnRows(sqlmock.NewRows(subColumns).
			AddRow("sub_1", "usr_1", "standard", "Standard Plan", "2500.00", "txn_1", "active", now, now.Add(24*time.Hour), nil, now, now))

		var seen *models.UserSubscription
		h := RequireActiveSubscription(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = SubscriptionFromContext(r.Context())
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/me/access", nil), models.RoleUser))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "txn_1", seen.ReferenceID)
	})
}

func TestInjectUserData(t *testing.T) {
	t.Run("anonymous request passes through", func(t *testing.T) {
		db.SetupMockDB(t)
		sm := scs.New()
		called := false
		h := sm.LoadAndSave(InjectUserData(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			assert.Nil(t, UserFromContext(r.Context()))
		})))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subscription", nil))
		assert.True(t, called)
	})

	t.Run("session user is loaded", func(t *testing.T) {
		mock := db.SetupMockDB(t)
		sm := scs.New()
		cookie := sessionCookie(t, sm, "usr_1")

		now := time.Now()
		mock.ExpectQuery(`WHERE u.id = \?`).WithArgs("usr_1").
			WillReturnRows(sqlmock.NewRows(userColumns).AddRow("usr_1", "Ram", "ram@gym.np", "hash", 1, "user", "standard", now, now))

		var seen *models.User
		h := sm.LoadAndSave(InjectUserData(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = UserFromContext(r.Context())
		})))
		req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
		req.AddCookie(cookie)
		h.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, seen)
		require.NotNil(t, seen.CurrentPlanID)
		assert.Equal(t, "standard", *seen.CurrentPlanID)
	})

	t.Run("lookup failure does not reject", func(t *testing.T) {
		mock := db.SetupMockDB(t)
		sm := scs.New()
		cookie := sessionCookie(t, sm, "usr_1")
		mock.ExpectQuery(`WHERE u.id = \?`).WithArgs("usr_1").WillReturnError(errors.New("connection refused"))

		called := false
		h := sm.LoadAndSave(InjectUserData(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			assert.Nil(t, UserFromContext(r.Context()))
		})))
		req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
		req.AddCookie(cookie)
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.True(t, called)
	})
}

// ==========================
// Rate limiting, CSRF, logging
// ==========================

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	require.NoError(t, rl.TrustProxies([]string{"192.0.2.0/24", "10.0.0.1"}))
	h := rl.Limit(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	other.RemoteAddr = "198.51.100.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rl.cleanup(time.Now().Add(time.Hour))
	assert.Empty(t, rl.clients)
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Limit(okHandler())

	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = "198.51.100.9:4444"
		req.Header.Set("X-Forwarded-For", spoofed)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_ClientIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	require.NoError(t, rl.TrustProxies([]string{"10.0.0.0/8"}))

	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct client", "198.51.100.2:5555", "", "198.51.100.2"},
		{"untrusted peer keeps its address", "198.51.100.2:5555", "203.0.113.7", "198.51.100.2"},
		{"trusted proxy", "10.0.0.5:80", "203.0.113.7", "203.0.113.7"},
		{"spoofed prefix skipped", "10.0.0.5:80", "1.2.3.4, 203.0.113.7, 10.0.0.9", "203.0.113.7"},
		{"trusted proxy without header", "10.0.0.5:80", "", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, rl.clientIP(req))
		})
	}

	assert.Error(t, rl.TrustProxies([]string{"not-an-ip"}))
}

func TestNoSurfMiddleware(t *testing.T) {
	h := NoSurfMiddleware(okHandler(), false, "/api/esewa/verify")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/me/password", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/esewa/verify", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestLogger_RecordsPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /api/trainers", okHandler())
	h := RequestLogger(mux)

	before := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, "GET /api/trainers", "204"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trainers", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	after := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, "GET /api/trainers", "204"))
	assert.Equal(t, before+1, after)
}
