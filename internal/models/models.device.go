// FilePath: internal/models/models.device.go
package models

import (
	"database/sql"
	"time"
)

// Device is a physical sensor node publishing telemetry, identified by the
// stable uid its firmware reports. A device may be unassigned (SiteID null)
// until an administrator attaches it to a site; its readings are stored but
// stay out of site-scoped query results until then.
type Device struct {
	ID        string         `json:"id" db:"id"`
	UID       string         `json:"uid" db:"uid"`
	Name      string         `json:"name" db:"name"`
	Active    bool           `json:"active" db:"active"`
	LastSeen  sql.NullTime   `json:"last_seen" db:"last_seen"`
	SiteID    sql.NullString `json:"site_id" db:"site_id"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Assigned reports whether the device currently belongs to a site.
func (d *Device) Assigned() bool {
	return d.SiteID.Valid
}
