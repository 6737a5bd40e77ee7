// FilePath: internal/models/models.reading.go
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Reading is a single timestamped measurement. Rows are append-only: the
// ingestion path never updates or deletes them. SiteID mirrors the device's
// site assignment at the moment of ingestion and is null for unassigned
// devices ("unscoped" readings). Raw keeps the original payload fragment
// for audit and diagnosis.
type Reading struct {
	ID         string          `json:"id" db:"id"`
	SiteID     sql.NullString  `json:"site_id" db:"site_id"`
	DeviceID   string          `json:"device_id" db:"device_id"`
	Time       time.Time       `json:"timestamp" db:"time"`
	SensorName string          `json:"sensor_name" db:"sensor_name"`
	SensorType SensorType      `json:"sensor_type" db:"sensor_type"`
	Value      float64         `json:"sensor_value" db:"value"`
	Unit       string          `json:"unit" db:"unit"`
	Raw        json.RawMessage `json:"raw,omitempty" db:"raw"`
}

// ReadingPoint is the wire shape the dashboard consumes for latest and
// history lookups.
type ReadingPoint struct {
	SensorName  string     `json:"sensor_name" db:"sensor_name"`
	SensorType  SensorType `json:"sensor_type" db:"sensor_type"`
	SensorValue float64    `json:"sensor_value" db:"value"`
	Unit        string     `json:"unit" db:"unit"`
	Timestamp   time.Time  `json:"timestamp" db:"time"`
}
