// FilePath: internal/models/models.sensor.go
package models

import (
	"database/sql"
	"time"
)

type SensorType string

const (
	Temperature SensorType = "temperature"
	Moisture    SensorType = "moisture"
	Light       SensorType = "light"
	Humidity    SensorType = "humidity"
	Pressure    SensorType = "pressure"
	Other       SensorType = "other"
)

// UnitFor returns the display unit conventionally attached to a sensor
// type when the publishing device does not report one.
func UnitFor(t SensorType) string {
	switch t {
	case Moisture:
		return "%"
	case Temperature:
		return "°C"
	case Light:
		return "lx"
	case Humidity:
		return "%"
	case Pressure:
		return "hPa"
	default:
		return ""
	}
}

// Sensor is one measurement channel on a device. (DeviceID, SensorName)
// is unique. Active is an administration flag only: traffic for a
// deactivated sensor is still stored but never flips the flag back on.
type Sensor struct {
	ID         string          `json:"id" db:"id"`
	DeviceID   string          `json:"device_id" db:"device_id"`
	SensorName string          `json:"sensor_name" db:"sensor_name"`
	SensorType SensorType      `json:"sensor_type" db:"sensor_type"`
	Unit       string          `json:"unit" db:"unit"`
	Active     bool            `json:"active" db:"active"`
	LastValue  sql.NullFloat64 `json:"last_value" db:"last_value"`
	LastSeen   sql.NullTime    `json:"last_seen" db:"last_seen"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
