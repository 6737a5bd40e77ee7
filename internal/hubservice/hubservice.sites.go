// FilePath: internal/hubservice/hubservice.sites.go
package hubservice

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/auth"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
)

// ListSites returns the sites visible to the principal: all for
// sys_admins, the assigned set for restricted users, the owning device's
// site for device tokens.
func (s *HubService) ListSites(ctx context.Context, p *auth.Principal) ([]*models.Site, error) {
	sites, err := s.Auth.PermittedSites(ctx, p)
	if err != nil {
		return nil, err
	}
	if sites.All {
		return s.Sites.List(ctx)
	}

	visible := make([]*models.Site, 0, len(sites.IDs))
	for _, id := range sites.SiteIDs() {
		site, err := s.Sites.Get(ctx, id)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		visible = append(visible, site)
	}
	return visible, nil
}

// SiteInput carries a site creation request.
type SiteInput struct {
	SiteCode     string `json:"site_code"`
	FriendlyName string `json:"friendly_name"`
}

// CreateSite creates a new site. sys_admin only.
func (s *HubService) CreateSite(ctx context.Context, p *auth.Principal, in SiteInput) (*models.Site, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	if in.SiteCode == "" {
		return nil, errors.NewValidationError("site_code is required", nil)
	}

	site := &models.Site{
		ID:           nuts.NID("site", 12),
		SiteCode:     in.SiteCode,
		FriendlyName: in.FriendlyName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Sites.Create(ctx, site); err != nil {
		if errors.IsConflict(err) {
			return nil, errors.NewConflictError("site code already in use", err)
		}
		return nil, err
	}
	return site, nil
}

// AssignDeviceSite attaches a device to a site, bringing its future
// readings into that site's scope. Previously stored unscoped readings
// stay unscoped. sys_admin only.
func (s *HubService) AssignDeviceSite(ctx context.Context, p *auth.Principal, deviceUID, siteID string) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}
	device, err := s.Devices.GetByUID(ctx, deviceUID)
	if err != nil {
		return err
	}
	if _, err := s.Sites.Get(ctx, siteID); err != nil {
		return err
	}
	if err := s.Devices.AssignSite(ctx, device.ID, siteID); err != nil {
		return err
	}
	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, device.UID); err != nil {
			nuts.L.Warnf("[HubService] Cache invalidation failed for %s: %v", device.UID, err)
		}
	}
	return nil
}
