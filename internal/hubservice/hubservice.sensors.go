// FilePath: internal/hubservice/hubservice.sensors.go
package hubservice

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/auth"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
)

// ListSensors returns the sensors on devices visible to the principal.
func (s *HubService) ListSensors(ctx context.Context, p *auth.Principal) ([]*models.Sensor, error) {
	if err := auth.RequireScope(p, models.ScopeReadSensors); err != nil {
		return nil, err
	}

	if p.Kind == auth.PrincipalDeviceToken {
		return s.Sensors.ListByDevice(ctx, p.Device.ID)
	}
	if p.IsAdmin() {
		return s.Sensors.List(ctx)
	}

	sites, err := s.Auth.PermittedSites(ctx, p)
	if err != nil {
		return nil, err
	}
	devices, err := s.Devices.ListBySites(ctx, sites.SiteIDs())
	if err != nil {
		return nil, err
	}

	sensors := []*models.Sensor{}
	for _, device := range devices {
		deviceSensors, err := s.Sensors.ListByDevice(ctx, device.ID)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, deviceSensors...)
	}
	return sensors, nil
}

// RegisterSensorInput carries the explicit sensor registration request.
type RegisterSensorInput struct {
	DeviceUID  string            `json:"device_uid"`
	SensorName string            `json:"sensor_name"`
	SensorType models.SensorType `json:"sensor_type"`
	Unit       string            `json:"unit"`
}

// RegisterSensor creates a sensor channel ahead of its first telemetry.
func (s *HubService) RegisterSensor(ctx context.Context, p *auth.Principal, in RegisterSensorInput) (*models.Sensor, error) {
	if err := auth.RequireScope(p, models.ScopeWriteSensors); err != nil {
		return nil, err
	}
	if in.DeviceUID == "" || in.SensorName == "" || in.SensorType == "" {
		return nil, errors.NewValidationError("device_uid, sensor_name and sensor_type are required", nil)
	}

	device, err := s.authorizeDeviceByUID(ctx, p, in.DeviceUID)
	if err != nil {
		return nil, err
	}

	unit := in.Unit
	if unit == "" {
		unit = models.UnitFor(in.SensorType)
	}
	sensor := &models.Sensor{
		DeviceID:   device.ID,
		SensorName: in.SensorName,
		SensorType: in.SensorType,
		Unit:       unit,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Sensors.Create(ctx, sensor); err != nil {
		if errors.IsConflict(err) {
			return nil, errors.NewConflictError("sensor already registered for device", err)
		}
		return nil, err
	}
	return sensor, nil
}

// getAuthorizedSensor loads a sensor and checks device access with the
// same uniform denial as the query paths.
func (s *HubService) getAuthorizedSensor(ctx context.Context, p *auth.Principal, sensorID string) (*models.Sensor, *models.Device, error) {
	sensor, err := s.Sensors.Get(ctx, sensorID)
	if err != nil {
		if errors.IsNotFound(err) && !p.IsAdmin() {
			return nil, nil, auth.ErrDeviceAccessDenied()
		}
		return nil, nil, err
	}
	device, err := s.Devices.Get(ctx, sensor.DeviceID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Auth.AuthorizeDevice(ctx, p, device); err != nil {
		return nil, nil, err
	}
	return sensor, device, nil
}

// SetSensorActive flips the admin-controlled active flag. This is the
// only path that reactivates a sensor; inbound traffic never does.
func (s *HubService) SetSensorActive(ctx context.Context, p *auth.Principal, sensorID string, active bool) error {
	if err := auth.RequireScope(p, models.ScopeWriteSensors); err != nil {
		return err
	}
	sensor, device, err := s.getAuthorizedSensor(ctx, p, sensorID)
	if err != nil {
		return err
	}
	if err := s.Sensors.SetActive(ctx, sensorID, active); err != nil {
		return err
	}
	nuts.L.Infof("[HubService] Sensor %s/%s active=%v by %s", device.UID, sensor.SensorName, active, p.Name())
	return nil
}

// DeleteSensor removes the sensor channel. Its readings remain in the
// time-series store.
func (s *HubService) DeleteSensor(ctx context.Context, p *auth.Principal, sensorID string) error {
	if err := auth.RequireScope(p, models.ScopeWriteSensors); err != nil {
		return err
	}
	_, device, err := s.getAuthorizedSensor(ctx, p, sensorID)
	if err != nil {
		return err
	}
	if err := s.Sensors.Delete(ctx, sensorID); err != nil {
		return err
	}
	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, device.UID); err != nil {
			nuts.L.Warnf("[HubService] Cache invalidation failed for %s: %v", device.UID, err)
		}
	}
	return nil
}
