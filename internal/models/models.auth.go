// FilePath: internal/models/models.auth.go
package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Session is the server-side record of an authenticated browser session.
// The token is opaque; ip/user-agent are kept for audit only.
type Session struct {
	Token     string    `json:"-" db:"session_token"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
}

// Expired reports whether the session has passed its absolute expiry.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// OwnerKind discriminates the api-token owner union.
type OwnerKind string

const (
	OwnerUser   OwnerKind = "user"
	OwnerDevice OwnerKind = "device"
)

// TokenOwner is the tagged owner of an API token: exactly one of a user
// or a device. The store enforces the same invariant with a CHECK
// constraint over two nullable columns; in Go the union is explicit.
type TokenOwner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// UserOwner builds a user-owned token owner.
func UserOwner(userID string) TokenOwner {
	return TokenOwner{Kind: OwnerUser, ID: userID}
}

// DeviceOwner builds a device-owned token owner.
func DeviceOwner(deviceID string) TokenOwner {
	return TokenOwner{Kind: OwnerDevice, ID: deviceID}
}

// Scope strings restrict what an API token may do. Session principals
// are authorized by role and site only, with no scope subdivision.
const (
	ScopeReadSensors  = "read:sensors"
	ScopeWriteSensors = "write:sensors"
	ScopeReadDevices  = "read:devices"
	ScopeAdmin        = "admin"
)

// APIToken is a long-lived credential for programmatic or device access.
// Only the SHA-256 hash of the token value is ever stored or logged.
type APIToken struct {
	ID          string         `json:"id" db:"id"`
	TokenHash   string         `json:"-" db:"token_hash"`
	Owner       TokenOwner     `json:"owner" db:"-"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description" db:"description"`
	Scopes      pq.StringArray `json:"scopes" db:"scopes"`
	Active      bool           `json:"active" db:"active"`
	LastUsed    sql.NullTime   `json:"last_used" db:"last_used"`
	ExpiresAt   sql.NullTime   `json:"expires_at" db:"expires_at"`
	CreatedBy   string         `json:"created_by" db:"created_by"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// HasScope reports whether the token carries the named scope.
func (t *APIToken) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Usable reports whether the token may still authenticate: active and,
// when an expiry is set, not yet past it.
func (t *APIToken) Usable(now time.Time) bool {
	if !t.Active {
		return false
	}
	if t.ExpiresAt.Valid && !now.Before(t.ExpiresAt.Time) {
		return false
	}
	return true
}
