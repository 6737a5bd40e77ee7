// FilePath: internal/models/models.site.go
package models

import "time"

// Site is the tenant/location unit that scopes device access.
type Site struct {
	ID           string    `json:"id" db:"id"`
	SiteCode     string    `json:"site_code" db:"site_code"`
	FriendlyName string    `json:"friendly_name" db:"friendly_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
