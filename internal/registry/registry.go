// FilePath: internal/registry/registry.go
package registry

import (
	"context"
	"database/sql"
	"time"

	"github.com/smartallotment/hub/internal/models"
	"github.com/smartallotment/hub/internal/repository"
)

// Resolver maintains the device/sensor registry from inbound telemetry.
// All mutation goes through the store's conflict-tolerant upserts; the
// resolver holds no state of its own, so concurrent resolutions for the
// same uid are serialized by the store's uniqueness constraints.
type Resolver struct {
	devices repository.DeviceRepository
	sensors repository.SensorRepository
}

// Resolution is the outcome of resolving one sensor entry.
type Resolution struct {
	Device *models.Device
	Sensor *models.Sensor
}

func New(devices repository.DeviceRepository, sensors repository.SensorRepository) *Resolver {
	return &Resolver{devices: devices, sensors: sensors}
}

// Resolve finds or creates the device and sensor rows for one telemetry
// entry and refreshes their liveness metadata. Devices are reactivated by
// any traffic; sensors are not. The returned Sensor carries the stored
// active flag so the caller can see (and report) a deactivated channel,
// but the reading is still expected to be stored.
func (r *Resolver) Resolve(ctx context.Context, deviceUID, sensorName string, sensorType models.SensorType, unit string, value float64, at time.Time) (*Resolution, error) {
	device, err := r.devices.Resolve(ctx, deviceUID, at)
	if err != nil {
		return nil, err
	}

	sensor, err := r.sensors.Resolve(ctx, &models.Sensor{
		DeviceID:   device.ID,
		SensorName: sensorName,
		SensorType: sensorType,
		Unit:       unit,
		LastValue:  sql.NullFloat64{Float64: value, Valid: true},
		LastSeen:   sql.NullTime{Time: at, Valid: true},
	})
	if err != nil {
		return nil, err
	}

	return &Resolution{Device: device, Sensor: sensor}, nil
}
