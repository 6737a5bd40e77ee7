// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smartallotment/hub/internal/database"
	"github.com/smartallotment/hub/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates that a resource already exists
	ErrDuplicate = errors.New("resource already exists")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// SiteRepository defines the interface for site operations
type SiteRepository interface {
	database.Repository
	Create(ctx context.Context, site *models.Site) error
	Get(ctx context.Context, id string) (*models.Site, error)
	GetByCode(ctx context.Context, code string) (*models.Site, error)
	List(ctx context.Context) ([]*models.Site, error)
}

// DeviceRepository defines the interface for device registry operations
type DeviceRepository interface {
	database.Repository
	// Resolve atomically finds or creates the device for uid, re-asserting
	// active and last_seen in the same statement. Exactly one row exists
	// per uid regardless of how many resolvers race on it.
	Resolve(ctx context.Context, uid string, seenAt time.Time) (*models.Device, error)
	Get(ctx context.Context, id string) (*models.Device, error)
	GetByUID(ctx context.Context, uid string) (*models.Device, error)
	List(ctx context.Context) ([]*models.Device, error)
	ListBySites(ctx context.Context, siteIDs []string) ([]*models.Device, error)
	AssignSite(ctx context.Context, deviceID, siteID string) error
}

// SensorRepository defines the interface for sensor registry operations
type SensorRepository interface {
	database.Repository
	Create(ctx context.Context, sensor *models.Sensor) error
	// Resolve atomically finds or creates the sensor for (deviceID, name).
	// On conflict it updates last_value/last_seen and leaves the admin
	// controlled active flag untouched. The returned row reflects the
	// stored state, including a previously deactivated flag.
	Resolve(ctx context.Context, sensor *models.Sensor) (*models.Sensor, error)
	Get(ctx context.Context, id string) (*models.Sensor, error)
	ListByDevice(ctx context.Context, deviceID string) ([]*models.Sensor, error)
	List(ctx context.Context) ([]*models.Sensor, error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// ReadingRepository defines the interface for the append-only time series
type ReadingRepository interface {
	database.Repository
	Insert(ctx context.Context, reading *models.Reading) error
	Latest(ctx context.Context, deviceID string) ([]models.ReadingPoint, error)
	History(ctx context.Context, deviceID string, from, to time.Time) ([]models.ReadingPoint, error)
}

// UserRepository defines the interface for user administration
type UserRepository interface {
	database.Repository
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	AssignedSiteIDs(ctx context.Context, userID string) ([]string, error)
	AssignSite(ctx context.Context, userID, siteID string) error
	UnassignSite(ctx context.Context, userID, siteID string) error
}

// SessionRepository defines the interface for browser sessions
type SessionRepository interface {
	database.Repository
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenRepository defines the interface for API tokens
type TokenRepository interface {
	database.Repository
	Create(ctx context.Context, token *models.APIToken) error
	GetByHash(ctx context.Context, hash string) (*models.APIToken, error)
	List(ctx context.Context) ([]*models.APIToken, error)
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
	Deactivate(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
