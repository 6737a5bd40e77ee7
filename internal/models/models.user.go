// FilePath: internal/models/models.user.go
package models

import (
	"database/sql"
	"time"
)

// Role is the closed set of dashboard roles. Dispatching on raw role
// strings is deliberately avoided; use the predicates below.
type Role string

const (
	RoleSysAdmin       Role = "sys_admin"
	RoleRestrictedUser Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSysAdmin, RoleRestrictedUser:
		return true
	}
	return false
}

// BypassesSiteScoping reports whether the role sees every site without
// assignment rows.
func (r Role) BypassesSiteScoping() bool {
	return r == RoleSysAdmin
}

// User is a dashboard principal.
type User struct {
	ID           string       `json:"id" db:"id"`
	Username     string       `json:"username" db:"username"`
	Email        string       `json:"email" db:"email"`
	PasswordHash string       `json:"-" db:"password_hash"`
	FullName     string       `json:"full_name" db:"full_name"`
	Role         Role         `json:"role" db:"role"`
	Active       bool         `json:"active" db:"active"`
	LastLogin    sql.NullTime `json:"last_login" db:"last_login"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// UserSiteAssignment joins a restricted user to a site they may access.
// Unique per (user, site); maintained only by sys_admins.
type UserSiteAssignment struct {
	UserID    string    `json:"user_id" db:"user_id"`
	SiteID    string    `json:"site_id" db:"site_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
