// FilePath: internal/hubservice/hubservice_test.go
package hubservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartallotment/hub/internal/auth"
	"github.com/smartallotment/hub/internal/config"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
	"github.com/smartallotment/hub/internal/repository/memory"
)

type serviceFixture struct {
	svc      *HubService
	sites    *memory.SiteRepo
	devices  *memory.DeviceRepo
	sensors  *memory.SensorRepo
	readings *memory.ReadingRepo
	users    *memory.UserRepo
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		sites:    memory.NewSiteRepository(),
		devices:  memory.NewDeviceRepository(),
		sensors:  memory.NewSensorRepository(),
		readings: memory.NewReadingRepository(),
		users:    memory.NewUserRepository(),
	}
	f.svc = New(
		f.sites, f.devices, f.sensors, f.readings, f.users,
		memory.NewSessionRepository(), memory.NewTokenRepository(),
		config.AuthConfig{SessionTTL: time.Hour, BcryptCost: bcrypt.MinCost},
		config.CleanupConfig{SessionSweepInterval: time.Minute, TokenSweepInterval: time.Minute},
		nil,
	)
	require.NoError(t, f.svc.Validate())
	return f
}

func (f *serviceFixture) admin(t *testing.T) *auth.Principal {
	t.Helper()
	user := &models.User{Username: "root", Role: models.RoleSysAdmin, Active: true}
	require.NoError(t, f.users.Create(context.Background(), user))
	return &auth.Principal{Kind: auth.PrincipalSession, User: user}
}

func (f *serviceFixture) restrictedUser(t *testing.T, username string, siteIDs ...string) *auth.Principal {
	t.Helper()
	user := &models.User{Username: username, Role: models.RoleRestrictedUser, Active: true}
	require.NoError(t, f.users.Create(context.Background(), user))
	for _, siteID := range siteIDs {
		require.NoError(t, f.users.AssignSite(context.Background(), user.ID, siteID))
	}
	return &auth.Principal{Kind: auth.PrincipalSession, User: user}
}

func (f *serviceFixture) device(t *testing.T, uid, siteID string) *models.Device {
	t.Helper()
	device, err := f.devices.Resolve(context.Background(), uid, time.Now().UTC())
	require.NoError(t, err)
	if siteID != "" {
		require.NoError(t, f.devices.AssignSite(context.Background(), device.ID, siteID))
		device, err = f.devices.Get(context.Background(), device.ID)
		require.NoError(t, err)
	}
	return device
}

func (f *serviceFixture) reading(t *testing.T, deviceID, name string, sensorType models.SensorType, value float64, at time.Time) {
	t.Helper()
	require.NoError(t, f.readings.Insert(context.Background(), &models.Reading{
		DeviceID:   deviceID,
		Time:       at,
		SensorName: name,
		SensorType: sensorType,
		Value:      value,
		Unit:       models.UnitFor(sensorType),
	}))
}

func TestHistoryRangeWindow(t *testing.T) {
	now := time.Date(2026, 5, 10, 14, 30, 0, 0, time.UTC)

	t.Run("relative hours", func(t *testing.T) {
		from, to, err := HistoryRange{Hours: 6}.Window(now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-6*time.Hour), from)
		assert.Equal(t, now, to)
	})

	t.Run("default is 24 hours", func(t *testing.T) {
		from, to, err := HistoryRange{}.Window(now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-24*time.Hour), from)
		assert.Equal(t, now, to)
	})

	t.Run("explicit interval span rounds up to whole hours", func(t *testing.T) {
		from := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
		to := from.Add(90 * time.Minute)
		gotFrom, gotTo, err := HistoryRange{From: from, To: to}.Window(now)
		require.NoError(t, err)
		assert.Equal(t, from, gotFrom)
		assert.Equal(t, from.Add(2*time.Hour), gotTo)
	})

	t.Run("whole hour interval is untouched", func(t *testing.T) {
		from := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
		to := from.Add(3 * time.Hour)
		gotFrom, gotTo, err := HistoryRange{From: from, To: to}.Window(now)
		require.NoError(t, err)
		assert.Equal(t, from, gotFrom)
		assert.Equal(t, to, gotTo)
	})

	t.Run("invalid inputs", func(t *testing.T) {
		_, _, err := HistoryRange{Hours: -1}.Window(now)
		assert.Error(t, err)
		_, _, err = HistoryRange{From: now}.Window(now)
		assert.Error(t, err)
		_, _, err = HistoryRange{From: now, To: now.Add(-time.Hour)}.Window(now)
		assert.Error(t, err)
	})
}

func TestLatestRoundTrip(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	device := f.device(t, "plot-3", "")

	base := time.Now().UTC().Add(-time.Hour)
	f.reading(t, device.ID, "air", models.Temperature, 19.0, base)
	f.reading(t, device.ID, "air", models.Temperature, 21.5, base.Add(30*time.Minute))
	f.reading(t, device.ID, "bed_1", models.Moisture, 44.0, base)

	points, err := f.svc.Latest(ctx, admin, "plot-3")
	require.NoError(t, err)
	require.Len(t, points, 2, "one point per sensor name")

	byName := map[string]models.ReadingPoint{}
	for _, point := range points {
		byName[point.SensorName] = point
	}
	assert.Equal(t, 21.5, byName["air"].SensorValue)
	assert.Equal(t, "°C", byName["air"].Unit)
	assert.Equal(t, 44.0, byName["bed_1"].SensorValue)
}

type stubLastValues struct {
	points map[string]models.ReadingPoint
	err    error
}

func (c *stubLastValues) Device(ctx context.Context, deviceUID string) (map[string]models.ReadingPoint, error) {
	return c.points, c.err
}

func (c *stubLastValues) Invalidate(ctx context.Context, deviceUID string) error { return nil }

func TestLatestServesCacheWithStoreFallback(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	device := f.device(t, "plot-3", "")
	f.reading(t, device.ID, "air", models.Temperature, 19.0, time.Now().UTC())

	cached := &stubLastValues{points: map[string]models.ReadingPoint{
		"air": {SensorName: "air", SensorType: models.Temperature, SensorValue: 23.0, Unit: "°C"},
	}}
	f.svc.Cache = cached

	points, err := f.svc.Latest(ctx, admin, "plot-3")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 23.0, points[0].SensorValue, "cache hit wins over the store")

	cached.points = nil
	points, err = f.svc.Latest(ctx, admin, "plot-3")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 19.0, points[0].SensorValue, "empty cache falls back to the store")

	f.svc.Cache = &stubLastValues{err: errors.NewTransientError("redis down", nil)}
	points, err = f.svc.Latest(ctx, admin, "plot-3")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 19.0, points[0].SensorValue, "cache error falls back to the store")
}

func TestHistoryAscendingWithinWindow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	device := f.device(t, "plot-3", "")

	now := time.Now().UTC()
	f.reading(t, device.ID, "air", models.Temperature, 1.0, now.Add(-30*time.Hour))
	f.reading(t, device.ID, "air", models.Temperature, 3.0, now.Add(-time.Hour))
	f.reading(t, device.ID, "air", models.Temperature, 2.0, now.Add(-2*time.Hour))

	points, err := f.svc.History(ctx, admin, "plot-3", HistoryRange{Hours: 6})
	require.NoError(t, err)
	require.Len(t, points, 2, "points outside the window stay out")
	assert.Equal(t, 2.0, points[0].SensorValue)
	assert.Equal(t, 3.0, points[1].SensorValue)
	assert.True(t, points[0].Timestamp.Before(points[1].Timestamp))
}

func TestDeviceAccessDenialIsUniform(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.device(t, "plot-3", "site-2")
	user := f.restrictedUser(t, "rosa", "site-1")

	// Out-of-scope device and missing device are indistinguishable.
	_, errOutOfScope := f.svc.Latest(ctx, user, "plot-3")
	_, errMissing := f.svc.Latest(ctx, user, "no-such-device")
	require.Error(t, errOutOfScope)
	require.Error(t, errMissing)
	assert.True(t, errors.IsAuthorization(errOutOfScope))
	assert.True(t, errors.IsAuthorization(errMissing))
	assert.Equal(t, errOutOfScope.Error(), errMissing.Error())

	// sys_admins have universal visibility and get a real not-found.
	admin := f.admin(t)
	_, err := f.svc.Latest(ctx, admin, "no-such-device")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListDevicesScoping(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	inSite := f.device(t, "plot-1", "site-1")
	f.device(t, "plot-2", "site-2")
	f.device(t, "plot-3", "")

	admin := f.admin(t)
	all, err := f.svc.ListDevices(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	user := f.restrictedUser(t, "rosa", "site-1")
	visible, err := f.svc.ListDevices(ctx, user)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "plot-1", visible[0].UID)

	devicePrincipal := &auth.Principal{
		Kind:   auth.PrincipalDeviceToken,
		Device: inSite,
		Token:  &models.APIToken{Scopes: []string{models.ScopeReadDevices}},
	}
	own, err := f.svc.ListDevices(ctx, devicePrincipal)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "plot-1", own[0].UID)
}

func TestListDevicesRequiresScopeForTokens(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	device := f.device(t, "plot-1", "site-1")

	principal := &auth.Principal{
		Kind:   auth.PrincipalDeviceToken,
		Device: device,
		Token:  &models.APIToken{Scopes: []string{models.ScopeReadSensors}},
	}
	_, err := f.svc.ListDevices(ctx, principal)
	require.Error(t, err)
	assert.True(t, errors.IsAuthorization(err))
}

func TestMintTokenOwnerValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	device := f.device(t, "plot-1", "site-1")

	_, err := f.svc.MintToken(ctx, admin, TokenInput{Name: "bad"})
	require.Error(t, err, "ownerless token must be rejected")

	_, err = f.svc.MintToken(ctx, admin, TokenInput{Name: "bad", UserID: admin.User.ID, DeviceUID: device.UID})
	require.Error(t, err, "dual-owner token must be rejected")

	minted, err := f.svc.MintToken(ctx, admin, TokenInput{
		Name:      "firmware",
		DeviceUID: device.UID,
		Scopes:    []string{models.ScopeReadSensors},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, minted.Raw)
	assert.Equal(t, models.OwnerDevice, minted.Token.Owner.Kind)
	assert.Equal(t, device.ID, minted.Token.Owner.ID)

	// Minted tokens authenticate until revoked.
	principal, err := f.svc.Auth.AuthenticateToken(ctx, minted.Raw)
	require.NoError(t, err)
	assert.Equal(t, auth.PrincipalDeviceToken, principal.Kind)

	require.NoError(t, f.svc.RevokeToken(ctx, admin, minted.Token.ID))
	_, err = f.svc.Auth.AuthenticateToken(ctx, minted.Raw)
	require.Error(t, err)
}

func TestAdminOnlySurfaces(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	user := f.restrictedUser(t, "rosa", "site-1")

	_, err := f.svc.ListUsers(ctx, user)
	assert.True(t, errors.IsAuthorization(err))

	_, err = f.svc.CreateSite(ctx, user, SiteInput{SiteCode: "s1", FriendlyName: "South"})
	assert.True(t, errors.IsAuthorization(err))

	_, err = f.svc.ListTokens(ctx, user)
	assert.True(t, errors.IsAuthorization(err))

	err = f.svc.AssignDeviceSite(ctx, user, "plot-1", "site-1")
	assert.True(t, errors.IsAuthorization(err))
}

func TestListSitesVisibility(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.admin(t)

	south, err := f.svc.CreateSite(ctx, admin, SiteInput{SiteCode: "south", FriendlyName: "South Field"})
	require.NoError(t, err)
	_, err = f.svc.CreateSite(ctx, admin, SiteInput{SiteCode: "north", FriendlyName: "North Field"})
	require.NoError(t, err)

	all, err := f.svc.ListSites(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	user := f.restrictedUser(t, "rosa", south.ID)
	visible, err := f.svc.ListSites(ctx, user)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "south", visible[0].SiteCode)
}

func TestSetSensorActiveAndDelete(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	device := f.device(t, "plot-1", "site-1")

	sensor, err := f.svc.RegisterSensor(ctx, admin, RegisterSensorInput{
		DeviceUID:  device.UID,
		SensorName: "bed_1",
		SensorType: models.Moisture,
	})
	require.NoError(t, err)
	assert.True(t, sensor.Active)

	require.NoError(t, f.svc.SetSensorActive(ctx, admin, sensor.ID, false))
	stored, err := f.sensors.Get(ctx, sensor.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	require.NoError(t, f.svc.DeleteSensor(ctx, admin, sensor.ID))
	_, err = f.sensors.Get(ctx, sensor.ID)
	assert.True(t, errors.IsNotFound(err))
}
