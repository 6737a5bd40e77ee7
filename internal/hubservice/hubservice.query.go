// FilePath: internal/hubservice/hubservice.query.go
package hubservice

import (
	"context"
	"sort"
	"time"

	"github.com/smartallotment/hub/internal/auth"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
)

// HistoryRange selects a history window either as a relative duration
// ("last N hours") or an explicit [From, To) interval.
type HistoryRange struct {
	Hours int       `schema:"hours"`
	From  time.Time `schema:"from"`
	To    time.Time `schema:"to"`
}

// Window converts the range into a concrete [from, to) interval. Only
// whole-hour windows are supported: an explicit interval's span is
// rounded up to the next whole hour, so the result may include readings
// slightly past the requested To bound. This is long-standing dashboard
// behavior and is kept as-is.
func (r HistoryRange) Window(now time.Time) (time.Time, time.Time, error) {
	if r.Hours < 0 {
		return time.Time{}, time.Time{}, errors.NewValidationError("hours must not be negative", nil)
	}
	if r.Hours > 0 {
		return now.Add(-time.Duration(r.Hours) * time.Hour), now, nil
	}
	if !r.From.IsZero() || !r.To.IsZero() {
		if r.From.IsZero() || r.To.IsZero() || !r.From.Before(r.To) {
			return time.Time{}, time.Time{}, errors.NewValidationError("interval requires from < to", nil)
		}
		span := r.To.Sub(r.From)
		if rem := span % time.Hour; rem != 0 {
			span += time.Hour - rem
		}
		return r.From, r.From.Add(span), nil
	}
	// Default window.
	return now.Add(-24 * time.Hour), now, nil
}

// DeviceSummary is the wire shape of a device listing entry.
type DeviceSummary struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// ListDevices returns the devices visible to the principal: all devices
// for sys_admins, devices on permitted sites for restricted users, and
// only the owning device for device-scoped tokens. Unassigned devices
// appear only for sys_admins.
func (s *HubService) ListDevices(ctx context.Context, p *auth.Principal) ([]DeviceSummary, error) {
	if err := auth.RequireScope(p, models.ScopeReadDevices); err != nil {
		return nil, err
	}

	var devices []*models.Device
	var err error
	switch {
	case p.Kind == auth.PrincipalDeviceToken:
		devices = []*models.Device{p.Device}
	case p.IsAdmin():
		devices, err = s.Devices.List(ctx)
	default:
		sites, sitesErr := s.Auth.PermittedSites(ctx, p)
		if sitesErr != nil {
			return nil, sitesErr
		}
		devices, err = s.Devices.ListBySites(ctx, sites.SiteIDs())
	}
	if err != nil {
		return nil, err
	}

	summaries := make([]DeviceSummary, 0, len(devices))
	for _, d := range devices {
		summaries = append(summaries, DeviceSummary{UID: d.UID, Name: d.Name})
	}
	return summaries, nil
}

// authorizeDeviceByUID resolves a device uid and checks access. A missing
// device and an out-of-scope device yield the same authorization error
// for non-admin callers so the two are indistinguishable; sys_admins have
// universal visibility and get a real not-found.
func (s *HubService) authorizeDeviceByUID(ctx context.Context, p *auth.Principal, deviceUID string) (*models.Device, error) {
	device, err := s.Devices.GetByUID(ctx, deviceUID)
	if err != nil {
		if errors.IsNotFound(err) {
			if p.IsAdmin() {
				return nil, err
			}
			return nil, auth.ErrDeviceAccessDenied()
		}
		return nil, err
	}
	if err := s.Auth.AuthorizeDevice(ctx, p, device); err != nil {
		return nil, err
	}
	return device, nil
}

// Latest returns the most recent reading per sensor on the device. The
// last-value cache is consulted first; a miss or cache error falls
// through to the store.
func (s *HubService) Latest(ctx context.Context, p *auth.Principal, deviceUID string) ([]models.ReadingPoint, error) {
	if err := auth.RequireScope(p, models.ScopeReadSensors); err != nil {
		return nil, err
	}
	device, err := s.authorizeDeviceByUID(ctx, p, deviceUID)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if cached, cacheErr := s.Cache.Device(ctx, device.UID); cacheErr == nil && len(cached) > 0 {
			points := make([]models.ReadingPoint, 0, len(cached))
			for _, point := range cached {
				points = append(points, point)
			}
			sort.Slice(points, func(i, j int) bool { return points[i].SensorName < points[j].SensorName })
			return points, nil
		}
	}

	return s.Readings.Latest(ctx, device.ID)
}

// History returns the device's readings in the requested window, ordered
// by ascending time.
func (s *HubService) History(ctx context.Context, p *auth.Principal, deviceUID string, r HistoryRange) ([]models.ReadingPoint, error) {
	if err := auth.RequireScope(p, models.ScopeReadSensors); err != nil {
		return nil, err
	}
	device, err := s.authorizeDeviceByUID(ctx, p, deviceUID)
	if err != nil {
		return nil, err
	}

	from, to, err := r.Window(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return s.Readings.History(ctx, device.ID, from, to)
}
