// FilePath: api/middleware/api.middleware.auth_test.go
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartallotment/hub/internal/auth"
	"github.com/smartallotment/hub/internal/config"
	"github.com/smartallotment/hub/internal/models"
	"github.com/smartallotment/hub/internal/monitoring"
	"github.com/smartallotment/hub/internal/repository/memory"
)

func newTestAuth(t *testing.T) (*auth.Service, *memory.UserRepo, *memory.DeviceRepo) {
	t.Helper()
	users := memory.NewUserRepository()
	devices := memory.NewDeviceRepository()
	svc := auth.New(users, memory.NewSessionRepository(), memory.NewTokenRepository(), devices, config.AuthConfig{
		SessionTTL: time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
	return svc, users, devices
}

func echoPrincipal(t *testing.T) (http.Handler, *auth.Principal) {
	t.Helper()
	captured := &auth.Principal{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFrom(r.Context())
		require.True(t, ok)
		*captured = *principal
		w.WriteHeader(http.StatusOK)
	}), captured
}

func TestAuthenticateWithSessionCookie(t *testing.T) {
	svc, users, _ := newTestAuth(t)
	hash, err := svc.HashPassword("secret")
	require.NoError(t, err)
	user := &models.User{Username: "rosa", PasswordHash: hash, Role: models.RoleRestrictedUser, Active: true}
	require.NoError(t, users.Create(context.Background(), user))

	session, _, err := svc.Login(context.Background(), "rosa", "secret", "", "")
	require.NoError(t, err)

	middleware := NewAuthMiddleware(svc, monitoring.NewService())
	handler, captured := echoPrincipal(t)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.Token})
	rec := httptest.NewRecorder()
	middleware.Authenticate(handler).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.PrincipalSession, captured.Kind)
	assert.Equal(t, user.ID, captured.User.ID)
}

func TestAuthenticateWithBearerToken(t *testing.T) {
	svc, _, devices := newTestAuth(t)
	device, err := devices.Resolve(context.Background(), "plot-3", time.Now().UTC())
	require.NoError(t, err)

	raw, _, err := svc.MintToken(context.Background(), models.DeviceOwner(device.ID), "firmware", "", []string{models.ScopeReadSensors}, nil, "admin")
	require.NoError(t, err)

	middleware := NewAuthMiddleware(svc, monitoring.NewService())
	handler, captured := echoPrincipal(t)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	middleware.Authenticate(handler).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.PrincipalDeviceToken, captured.Kind)
	assert.Equal(t, device.ID, captured.Device.ID)
}

func TestAuthenticateRejectsMissingAndBadCredentials(t *testing.T) {
	svc, _, _ := newTestAuth(t)
	monitor := monitoring.NewService()
	middleware := NewAuthMiddleware(svc, monitor)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a principal")
	})

	cases := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"no credentials", func(r *http.Request) {}},
		{"unknown bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer bogus") }},
		{"unknown session", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "bogus"})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			middleware.Authenticate(next).ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["detail"])
		})
	}
	assert.Equal(t, int64(3), monitor.Counters().AuthFailures)
}

func TestBearerTakesPrecedenceOverCookie(t *testing.T) {
	svc, _, devices := newTestAuth(t)
	device, err := devices.Resolve(context.Background(), "plot-3", time.Now().UTC())
	require.NoError(t, err)
	raw, _, err := svc.MintToken(context.Background(), models.DeviceOwner(device.ID), "firmware", "", nil, nil, "admin")
	require.NoError(t, err)

	middleware := NewAuthMiddleware(svc, monitoring.NewService())
	handler, captured := echoPrincipal(t)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale-cookie"})
	rec := httptest.NewRecorder()
	middleware.Authenticate(handler).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, auth.PrincipalDeviceToken, captured.Kind)
}
