package hubservice

import (
	"context"

	"github.com/smartallotment/hub/internal/auth"
	"github.com/smartallotment/hub/internal/cleanup"
	"github.com/smartallotment/hub/internal/config"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
	"github.com/smartallotment/hub/internal/repository"
)

// LastValueCache is the service-side surface of the last-value cache.
// Device serves cached latest points as a best-effort fast path with
// store fallback; Invalidate drops a device's entries when a mutation
// path changes registry state under it.
type LastValueCache interface {
	Device(ctx context.Context, deviceUID string) (map[string]models.ReadingPoint, error)
	Invalidate(ctx context.Context, deviceUID string) error
}

// HubService contains all repositories and service-wide dependencies.
// Every read/write path is gated by the Auth capability checks; handlers
// never touch repositories directly.
type HubService struct {
	Sites    repository.SiteRepository
	Devices  repository.DeviceRepository
	Sensors  repository.SensorRepository
	Readings repository.ReadingRepository
	Users    repository.UserRepository
	Sessions repository.SessionRepository
	Tokens   repository.TokenRepository
	Auth     *auth.Service
	Cache    LastValueCache
	Cleanup  *cleanup.CleanupService
}

// New creates a new HubService instance
func New(
	sites repository.SiteRepository,
	devices repository.DeviceRepository,
	sensors repository.SensorRepository,
	readings repository.ReadingRepository,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens repository.TokenRepository,
	authCfg config.AuthConfig,
	cleanupCfg config.CleanupConfig,
	cache LastValueCache,
) *HubService {
	svc := &HubService{
		Sites:    sites,
		Devices:  devices,
		Sensors:  sensors,
		Readings: readings,
		Users:    users,
		Sessions: sessions,
		Tokens:   tokens,
		Cache:    cache,
	}
	svc.Auth = auth.New(users, sessions, tokens, devices, authCfg)
	svc.Cleanup = cleanup.New(sessions, tokens, cleanupCfg)
	return svc
}

// Validate checks if all required repositories are initialized
func (s *HubService) Validate() error {
	if s.Sites == nil {
		return ErrMissingRepository("sites")
	}
	if s.Devices == nil {
		return ErrMissingRepository("devices")
	}
	if s.Sensors == nil {
		return ErrMissingRepository("sensors")
	}
	if s.Readings == nil {
		return ErrMissingRepository("readings")
	}
	if s.Users == nil {
		return ErrMissingRepository("users")
	}
	if s.Sessions == nil {
		return ErrMissingRepository("sessions")
	}
	if s.Tokens == nil {
		return ErrMissingRepository("tokens")
	}
	return nil
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}
