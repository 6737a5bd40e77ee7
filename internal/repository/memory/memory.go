// FilePath: internal/repository/memory/memory.go

// Package memory provides map-backed implementations of the repository
// interfaces. They mirror the conflict and scoping semantics of the
// postgres implementations closely enough for service-level tests, and
// back single-binary demo deployments that have no database at hand.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/database"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
)

// noopTx satisfies database.Transaction; memory stores mutate atomically
// under their own locks.
type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }
func (noopTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}

type base struct{ mu sync.Mutex }

func (b *base) BeginTx(ctx context.Context) (database.Transaction, error) {
	return noopTx{}, nil
}

// SiteRepo is an in-memory repository.SiteRepository.
type SiteRepo struct {
	base
	sites map[string]*models.Site
}

func NewSiteRepository() *SiteRepo {
	return &SiteRepo{sites: make(map[string]*models.Site)}
}

func (r *SiteRepo) Create(ctx context.Context, site *models.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sites {
		if s.SiteCode == site.SiteCode {
			return errors.NewConflictError("site already exists", nil)
		}
	}
	if site.ID == "" {
		site.ID = nuts.NID("site", 12)
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now().UTC()
	}
	cp := *site
	r.sites[site.ID] = &cp
	return nil
}

func (r *SiteRepo) Get(ctx context.Context, id string) (*models.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	site, ok := r.sites[id]
	if !ok {
		return nil, errors.NewNotFoundError("site not found", nil)
	}
	cp := *site
	return &cp, nil
}

func (r *SiteRepo) GetByCode(ctx context.Context, code string) (*models.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, site := range r.sites {
		if site.SiteCode == code {
			cp := *site
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("site not found", nil)
}

func (r *SiteRepo) List(ctx context.Context) ([]*models.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Site, 0, len(r.sites))
	for _, site := range r.sites {
		cp := *site
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteCode < out[j].SiteCode })
	return out, nil
}

// DeviceRepo is an in-memory repository.DeviceRepository.
type DeviceRepo struct {
	base
	devices map[string]*models.Device
	byUID   map[string]string
}

func NewDeviceRepository() *DeviceRepo {
	return &DeviceRepo{
		devices: make(map[string]*models.Device),
		byUID:   make(map[string]string),
	}
}

func (r *DeviceRepo) Resolve(ctx context.Context, uid string, seenAt time.Time) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byUID[uid]; ok {
		device := r.devices[id]
		device.Active = true
		device.LastSeen = sql.NullTime{Time: seenAt, Valid: true}
		cp := *device
		return &cp, nil
	}
	device := &models.Device{
		ID:        nuts.NID("dev", 12),
		UID:       uid,
		Active:    true,
		LastSeen:  sql.NullTime{Time: seenAt, Valid: true},
		CreatedAt: seenAt,
	}
	r.devices[device.ID] = device
	r.byUID[uid] = device.ID
	cp := *device
	return &cp, nil
}

func (r *DeviceRepo) Get(ctx context.Context, id string) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.devices[id]
	if !ok {
		return nil, errors.NewNotFoundError("device not found", nil)
	}
	cp := *device
	return &cp, nil
}

func (r *DeviceRepo) GetByUID(ctx context.Context, uid string) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byUID[uid]
	if !ok {
		return nil, errors.NewNotFoundError("device not found", nil)
	}
	cp := *r.devices[id]
	return &cp, nil
}

func (r *DeviceRepo) List(ctx context.Context) ([]*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Device, 0, len(r.devices))
	for _, device := range r.devices {
		cp := *device
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (r *DeviceRepo) ListBySites(ctx context.Context, siteIDs []string) ([]*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowed := make(map[string]bool, len(siteIDs))
	for _, id := range siteIDs {
		allowed[id] = true
	}
	var out []*models.Device
	for _, device := range r.devices {
		if device.SiteID.Valid && allowed[device.SiteID.String] {
			cp := *device
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (r *DeviceRepo) AssignSite(ctx context.Context, deviceID, siteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.devices[deviceID]
	if !ok {
		return errors.NewNotFoundError("device not found", nil)
	}
	device.SiteID = sql.NullString{String: siteID, Valid: true}
	return nil
}

// SensorRepo is an in-memory repository.SensorRepository.
type SensorRepo struct {
	base
	sensors map[string]*models.Sensor
}

func NewSensorRepository() *SensorRepo {
	return &SensorRepo{sensors: make(map[string]*models.Sensor)}
}

func (r *SensorRepo) Create(ctx context.Context, sensor *models.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sensors {
		if s.DeviceID == sensor.DeviceID && s.SensorName == sensor.SensorName {
			return errors.NewConflictError("sensor already exists", nil)
		}
	}
	if sensor.ID == "" {
		sensor.ID = nuts.NID("sen", 12)
	}
	if sensor.CreatedAt.IsZero() {
		sensor.CreatedAt = time.Now().UTC()
	}
	cp := *sensor
	r.sensors[sensor.ID] = &cp
	return nil
}

func (r *SensorRepo) Resolve(ctx context.Context, sensor *models.Sensor) (*models.Sensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sensors {
		if existing.DeviceID == sensor.DeviceID && existing.SensorName == sensor.SensorName {
			// Conflict path refreshes liveness only; active stays as the
			// administrator left it.
			existing.LastValue = sensor.LastValue
			existing.LastSeen = sensor.LastSeen
			cp := *existing
			return &cp, nil
		}
	}
	created := *sensor
	created.ID = nuts.NID("sen", 12)
	created.Active = true
	if created.LastSeen.Valid {
		created.CreatedAt = created.LastSeen.Time
	} else {
		created.CreatedAt = time.Now().UTC()
	}
	r.sensors[created.ID] = &created
	cp := created
	return &cp, nil
}

func (r *SensorRepo) Get(ctx context.Context, id string) (*models.Sensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sensor, ok := r.sensors[id]
	if !ok {
		return nil, errors.NewNotFoundError("sensor not found", nil)
	}
	cp := *sensor
	return &cp, nil
}

func (r *SensorRepo) ListByDevice(ctx context.Context, deviceID string) ([]*models.Sensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Sensor
	for _, sensor := range r.sensors {
		if sensor.DeviceID == deviceID {
			cp := *sensor
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorName < out[j].SensorName })
	return out, nil
}

func (r *SensorRepo) List(ctx context.Context) ([]*models.Sensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Sensor, 0, len(r.sensors))
	for _, sensor := range r.sensors {
		cp := *sensor
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *SensorRepo) SetActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sensor, ok := r.sensors[id]
	if !ok {
		return errors.NewNotFoundError("sensor not found", nil)
	}
	sensor.Active = active
	return nil
}

func (r *SensorRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sensors[id]; !ok {
		return errors.NewNotFoundError("sensor not found", nil)
	}
	delete(r.sensors, id)
	return nil
}

// ReadingRepo is an in-memory repository.ReadingRepository.
type ReadingRepo struct {
	base
	readings []*models.Reading
}

func NewReadingRepository() *ReadingRepo {
	return &ReadingRepo{}
}

func (r *ReadingRepo) Insert(ctx context.Context, reading *models.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reading.ID == "" {
		reading.ID = nuts.NID("rd", 12)
	}
	cp := *reading
	r.readings = append(r.readings, &cp)
	return nil
}

func (r *ReadingRepo) Latest(ctx context.Context, deviceID string) ([]models.ReadingPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := make(map[string]*models.Reading)
	for _, reading := range r.readings {
		if reading.DeviceID != deviceID {
			continue
		}
		if prev, ok := latest[reading.SensorName]; !ok || reading.Time.After(prev.Time) {
			latest[reading.SensorName] = reading
		}
	}
	names := make([]string, 0, len(latest))
	for name := range latest {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]models.ReadingPoint, 0, len(names))
	for _, name := range names {
		out = append(out, toPoint(latest[name]))
	}
	return out, nil
}

func (r *ReadingRepo) History(ctx context.Context, deviceID string, from, to time.Time) ([]models.ReadingPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReadingPoint
	for _, reading := range r.readings {
		if reading.DeviceID != deviceID {
			continue
		}
		if reading.Time.Before(from) || !reading.Time.Before(to) {
			continue
		}
		out = append(out, toPoint(reading))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Count reports the number of stored readings. Test helper.
func (r *ReadingRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.readings)
}

func toPoint(reading *models.Reading) models.ReadingPoint {
	return models.ReadingPoint{
		SensorName:  reading.SensorName,
		SensorType:  reading.SensorType,
		SensorValue: reading.Value,
		Unit:        reading.Unit,
		Timestamp:   reading.Time,
	}
}

// UserRepo is an in-memory repository.UserRepository.
type UserRepo struct {
	base
	users       map[string]*models.User
	assignments map[string]map[string]bool
}

func NewUserRepository() *UserRepo {
	return &UserRepo{
		users:       make(map[string]*models.User),
		assignments: make(map[string]map[string]bool),
	}
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return errors.NewConflictError("user already exists", nil)
		}
	}
	if user.ID == "" {
		user.ID = nuts.NID("usr", 12)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *UserRepo) Get(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NewNotFoundError("user not found", nil)
	}
	cp := *user
	return &cp, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("user not found", nil)
}

func (r *UserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return errors.NewNotFoundError("user not found", nil)
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return errors.NewNotFoundError("user not found", nil)
	}
	delete(r.users, id)
	delete(r.assignments, id)
	return nil
}

func (r *UserRepo) List(ctx context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.User, 0, len(r.users))
	for _, user := range r.users {
		cp := *user
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return errors.NewNotFoundError("user not found", nil)
	}
	user.LastLogin = sql.NullTime{Time: at, Valid: true}
	return nil
}

func (r *UserRepo) AssignedSiteIDs(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.assignments[userID]))
	for siteID := range r.assignments[userID] {
		ids = append(ids, siteID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *UserRepo) AssignSite(ctx context.Context, userID, siteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return errors.NewNotFoundError("user not found", nil)
	}
	if r.assignments[userID] == nil {
		r.assignments[userID] = make(map[string]bool)
	}
	r.assignments[userID][siteID] = true
	return nil
}

func (r *UserRepo) UnassignSite(ctx context.Context, userID, siteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.assignments[userID], siteID)
	return nil
}

// SessionRepo is an in-memory repository.SessionRepository.
type SessionRepo struct {
	base
	sessions map[string]*models.Session
}

func NewSessionRepository() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]*models.Session)}
}

func (r *SessionRepo) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.sessions[session.Token] = &cp
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[token]
	if !ok {
		return nil, errors.NewNotFoundError("session not found", nil)
	}
	cp := *session
	return &cp, nil
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for token, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, token)
			count++
		}
	}
	return count, nil
}

// TokenRepo is an in-memory repository.TokenRepository.
type TokenRepo struct {
	base
	tokens map[string]*models.APIToken
}

func NewTokenRepository() *TokenRepo {
	return &TokenRepo{tokens: make(map[string]*models.APIToken)}
}

func (r *TokenRepo) Create(ctx context.Context, token *models.APIToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == token.TokenHash {
			return errors.NewConflictError("api token already exists", nil)
		}
	}
	if token.ID == "" {
		token.ID = nuts.NID("tok", 12)
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	cp := *token
	r.tokens[token.ID] = &cp
	return nil
}

func (r *TokenRepo) GetByHash(ctx context.Context, hash string) (*models.APIToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.TokenHash == hash {
			cp := *token
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("api token not found", nil)
}

func (r *TokenRepo) List(ctx context.Context) ([]*models.APIToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.APIToken, 0, len(r.tokens))
	for _, token := range r.tokens {
		cp := *token
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *TokenRepo) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok {
		return errors.NewNotFoundError("api token not found", nil)
	}
	token.LastUsed = sql.NullTime{Time: at, Valid: true}
	return nil
}

func (r *TokenRepo) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok {
		return errors.NewNotFoundError("api token not found", nil)
	}
	token.Active = false
	return nil
}

func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, token := range r.tokens {
		if token.ExpiresAt.Valid && !now.Before(token.ExpiresAt.Time) {
			delete(r.tokens, id)
			count++
		}
	}
	return count, nil
}
