// FilePath: internal/auth/auth_test.go
package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartallotment/hub/internal/config"
	"github.com/smartallotment/hub/internal/models"
	"github.com/smartallotment/hub/internal/repository/memory"
)

type authFixture struct {
	users    *memory.UserRepo
	sessions *memory.SessionRepo
	tokens   *memory.TokenRepo
	devices  *memory.DeviceRepo
	svc      *Service
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:    memory.NewUserRepository(),
		sessions: memory.NewSessionRepository(),
		tokens:   memory.NewTokenRepository(),
		devices:  memory.NewDeviceRepository(),
	}
	f.svc = New(f.users, f.sessions, f.tokens, f.devices, config.AuthConfig{
		SessionTTL: time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
	return f
}

func (f *authFixture) addUser(t *testing.T, username string, role models.Role, active bool) *models.User {
	t.Helper()
	hash, err := f.svc.HashPassword("gardeners-rule")
	require.NoError(t, err)
	user := &models.User{
		Username:     username,
		Email:        username + "@example.org",
		PasswordHash: hash,
		Role:         role,
		Active:       active,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *authFixture) addDevice(t *testing.T, uid, siteID string) *models.Device {
	t.Helper()
	device, err := f.devices.Resolve(context.Background(), uid, time.Now().UTC())
	require.NoError(t, err)
	if siteID != "" {
		require.NoError(t, f.devices.AssignSite(context.Background(), device.ID, siteID))
		device.SiteID = sql.NullString{String: siteID, Valid: true}
	}
	return device
}

func TestLoginOpensSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.addUser(t, "rosa", models.RoleRestrictedUser, true)

	session, got, err := f.svc.Login(ctx, "rosa", "gardeners-rule", "10.0.0.5", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, session.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), session.ExpiresAt, 5*time.Second)

	stored, err := f.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastLogin.Valid)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.addUser(t, "rosa", models.RoleRestrictedUser, true)
	f.addUser(t, "dormant", models.RoleRestrictedUser, false)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "rosa", "wrong"},
		{"unknown user", "nobody", "gardeners-rule"},
		{"deactivated user", "dormant", "gardeners-rule"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.svc.Login(ctx, tc.username, tc.password, "", "")
			require.Error(t, err)
			// Uniform message regardless of the actual reason.
			assert.Contains(t, err.Error(), "invalid username or password")
		})
	}
}

func TestAuthenticateSessionLifecycle(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.addUser(t, "rosa", models.RoleRestrictedUser, true)

	session, _, err := f.svc.Login(ctx, "rosa", "gardeners-rule", "", "")
	require.NoError(t, err)

	principal, err := f.svc.AuthenticateSession(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, PrincipalSession, principal.Kind)
	assert.Equal(t, user.ID, principal.User.ID)

	// Logout revokes immediately.
	require.NoError(t, f.svc.Logout(ctx, session.Token))
	_, err = f.svc.AuthenticateSession(ctx, session.Token)
	require.Error(t, err)
}

func TestAuthenticateSessionExpired(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.addUser(t, "rosa", models.RoleRestrictedUser, true)

	stale := &models.Session{
		Token:     "stale-token",
		UserID:    user.ID,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, f.sessions.Create(ctx, stale))

	_, err := f.svc.AuthenticateSession(ctx, "stale-token")
	require.Error(t, err)
}

func TestAuthenticateSessionDeactivatedUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.addUser(t, "rosa", models.RoleRestrictedUser, true)

	session, _, err := f.svc.Login(ctx, "rosa", "gardeners-rule", "", "")
	require.NoError(t, err)

	user.Active = false
	require.NoError(t, f.users.Update(ctx, user))

	_, err = f.svc.AuthenticateSession(ctx, session.Token)
	require.Error(t, err, "deactivation must take effect on the next check")
}

func TestAuthenticateTokenUserOwned(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.addUser(t, "rosa", models.RoleRestrictedUser, true)

	raw, token, err := f.svc.MintToken(ctx, models.UserOwner(user.ID), "dashboard", "", []string{models.ScopeReadSensors}, nil, user.ID)
	require.NoError(t, err)
	require.NotEqual(t, raw, token.TokenHash, "raw value must never be stored")

	principal, err := f.svc.AuthenticateToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, PrincipalUserToken, principal.Kind)
	assert.Equal(t, user.ID, principal.User.ID)

	stored, err := f.tokens.GetByHash(ctx, HashToken(raw))
	require.NoError(t, err)
	assert.True(t, stored.LastUsed.Valid)
}

func TestAuthenticateTokenDeviceOwned(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	device := f.addDevice(t, "plot-3", "site-1")

	raw, _, err := f.svc.MintToken(ctx, models.DeviceOwner(device.ID), "firmware", "", []string{models.ScopeReadSensors}, nil, "admin")
	require.NoError(t, err)

	principal, err := f.svc.AuthenticateToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, PrincipalDeviceToken, principal.Kind)
	require.NotNil(t, principal.Device)
	assert.Equal(t, device.ID, principal.Device.ID)
	assert.Nil(t, principal.User)
}

func TestAuthenticateTokenRevocationAndExpiry(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.addUser(t, "rosa", models.RoleRestrictedUser, true)

	raw, token, err := f.svc.MintToken(ctx, models.UserOwner(user.ID), "revoked", "", nil, nil, user.ID)
	require.NoError(t, err)
	require.NoError(t, f.tokens.Deactivate(ctx, token.ID))
	_, err = f.svc.AuthenticateToken(ctx, raw)
	require.Error(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	raw, _, err = f.svc.MintToken(ctx, models.UserOwner(user.ID), "expired", "", nil, &past, user.ID)
	require.NoError(t, err)
	_, err = f.svc.AuthenticateToken(ctx, raw)
	require.Error(t, err)

	_, err = f.svc.AuthenticateToken(ctx, "never-minted")
	require.Error(t, err)
}

func TestRequireScope(t *testing.T) {
	sessionPrincipal := &Principal{Kind: PrincipalSession, User: &models.User{Role: models.RoleRestrictedUser}}
	assert.NoError(t, RequireScope(sessionPrincipal, models.ScopeWriteSensors), "sessions carry no scope subdivision")

	tokenPrincipal := &Principal{
		Kind:  PrincipalUserToken,
		User:  &models.User{Role: models.RoleRestrictedUser},
		Token: &models.APIToken{Scopes: []string{models.ScopeReadSensors}},
	}
	assert.NoError(t, RequireScope(tokenPrincipal, models.ScopeReadSensors))
	assert.Error(t, RequireScope(tokenPrincipal, models.ScopeWriteSensors))
}

func TestPermittedSites(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	admin := f.addUser(t, "root", models.RoleSysAdmin, true)
	user := f.addUser(t, "rosa", models.RoleRestrictedUser, true)
	require.NoError(t, f.users.AssignSite(ctx, user.ID, "site-1"))
	require.NoError(t, f.users.AssignSite(ctx, user.ID, "site-2"))

	sites, err := f.svc.PermittedSites(ctx, &Principal{Kind: PrincipalSession, User: admin})
	require.NoError(t, err)
	assert.True(t, sites.All)

	sites, err = f.svc.PermittedSites(ctx, &Principal{Kind: PrincipalSession, User: user})
	require.NoError(t, err)
	assert.False(t, sites.All)
	assert.ElementsMatch(t, []string{"site-1", "site-2"}, sites.SiteIDs())

	assigned := f.addDevice(t, "plot-3", "site-9")
	sites, err = f.svc.PermittedSites(ctx, &Principal{Kind: PrincipalDeviceToken, Device: assigned})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"site-9"}, sites.SiteIDs())

	unassigned := f.addDevice(t, "plot-4", "")
	sites, err = f.svc.PermittedSites(ctx, &Principal{Kind: PrincipalDeviceToken, Device: unassigned})
	require.NoError(t, err)
	assert.Empty(t, sites.SiteIDs())
}

func TestAuthorizeDevice(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	admin := f.addUser(t, "root", models.RoleSysAdmin, true)
	user := f.addUser(t, "rosa", models.RoleRestrictedUser, true)
	require.NoError(t, f.users.AssignSite(ctx, user.ID, "site-1"))

	inSite := f.addDevice(t, "plot-3", "site-1")
	elsewhere := f.addDevice(t, "plot-4", "site-2")
	unassigned := f.addDevice(t, "plot-5", "")

	adminPrincipal := &Principal{Kind: PrincipalSession, User: admin}
	userPrincipal := &Principal{Kind: PrincipalSession, User: user}

	assert.NoError(t, f.svc.AuthorizeDevice(ctx, adminPrincipal, unassigned), "sys_admin sees unassigned devices")
	assert.NoError(t, f.svc.AuthorizeDevice(ctx, userPrincipal, inSite))
	assert.Error(t, f.svc.AuthorizeDevice(ctx, userPrincipal, elsewhere))
	assert.Error(t, f.svc.AuthorizeDevice(ctx, userPrincipal, unassigned), "unassigned devices are admin-only")

	devicePrincipal := &Principal{Kind: PrincipalDeviceToken, Device: inSite}
	assert.NoError(t, f.svc.AuthorizeDevice(ctx, devicePrincipal, inSite))
	assert.Error(t, f.svc.AuthorizeDevice(ctx, devicePrincipal, elsewhere), "device tokens are confined to their own device")
}
