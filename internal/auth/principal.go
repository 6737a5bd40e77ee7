// FilePath: internal/auth/principal.go
package auth

import "github.com/smartallotment/hub/internal/models"

// PrincipalKind discriminates how the caller authenticated.
type PrincipalKind string

const (
	PrincipalSession     PrincipalKind = "session"
	PrincipalUserToken   PrincipalKind = "user_token"
	PrincipalDeviceToken PrincipalKind = "device_token"
)

// Principal is the resolved identity of one authenticated request.
// User is set for session and user-token principals; Device for
// device-token principals; Token whenever a bearer token was used.
type Principal struct {
	Kind    PrincipalKind
	User    *models.User
	Device  *models.Device
	Session *models.Session
	Token   *models.APIToken
}

// IsAdmin reports whether the principal carries the sys_admin role.
// Device-token principals never do.
func (p *Principal) IsAdmin() bool {
	return p.User != nil && p.User.Role.BypassesSiteScoping()
}

// Name returns a loggable identity for the principal.
func (p *Principal) Name() string {
	switch {
	case p.User != nil:
		return p.User.Username
	case p.Device != nil:
		return "device:" + p.Device.UID
	}
	return "unknown"
}

// SiteSet is the caller's permitted site set. All short-circuits
// membership for sys_admins.
type SiteSet struct {
	All bool
	IDs map[string]struct{}
}

// AllSites is the universal set.
func AllSites() SiteSet {
	return SiteSet{All: true}
}

// SitesOf builds a set from explicit site ids.
func SitesOf(ids []string) SiteSet {
	set := SiteSet{IDs: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		set.IDs[id] = struct{}{}
	}
	return set
}

// Contains reports whether the site is in the permitted set.
func (s SiteSet) Contains(siteID string) bool {
	if s.All {
		return true
	}
	_, ok := s.IDs[siteID]
	return ok
}

// SiteIDs returns the explicit ids; nil when the set is universal.
func (s SiteSet) SiteIDs() []string {
	if s.All {
		return nil
	}
	ids := make([]string, 0, len(s.IDs))
	for id := range s.IDs {
		ids = append(ids, id)
	}
	return ids
}
