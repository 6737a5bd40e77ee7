// FilePath: internal/hubservice/hubservice.users.go
package hubservice

import (
	"context"
	"time"

	"github.com/smartallotment/hub/internal/auth"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
)

// UserInput carries user create/update requests. Password is optional on
// update; Role must be one of the closed role set.
type UserInput struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	FullName string      `json:"full_name"`
	Role     models.Role `json:"role"`
	Active   *bool       `json:"active"`
}

// ListUsers returns all users. sys_admin only.
func (s *HubService) ListUsers(ctx context.Context, p *auth.Principal) ([]*models.User, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	return s.Users.List(ctx)
}

// CreateUser creates a dashboard principal. sys_admin only.
func (s *HubService) CreateUser(ctx context.Context, p *auth.Principal, in UserInput) (*models.User, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, errors.NewValidationError("username, email and password are required", nil)
	}
	if !in.Role.Valid() {
		return nil, errors.NewValidationError("role must be sys_admin or user", nil)
	}

	hash, err := s.Auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Users.Create(ctx, user); err != nil {
		if errors.IsConflict(err) {
			return nil, errors.NewConflictError("username or email already in use", err)
		}
		return nil, err
	}
	return user, nil
}

// UpdateUser updates a user's profile, role, active flag and optionally
// password. sys_admin only. Deactivation takes effect on the target's
// next authentication check.
func (s *HubService) UpdateUser(ctx context.Context, p *auth.Principal, userID string, in UserInput) (*models.User, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}

	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Username != "" {
		user.Username = in.Username
	}
	if in.Email != "" {
		user.Email = in.Email
	}
	if in.FullName != "" {
		user.FullName = in.FullName
	}
	if in.Role != "" {
		if !in.Role.Valid() {
			return nil, errors.NewValidationError("role must be sys_admin or user", nil)
		}
		user.Role = in.Role
	}
	if in.Active != nil {
		user.Active = *in.Active
	}
	if in.Password != "" {
		hash, err := s.Auth.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.Users.Update(ctx, user); err != nil {
		if errors.IsConflict(err) {
			return nil, errors.NewConflictError("username or email already in use", err)
		}
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a user; their sessions and site assignments go with
// them. sys_admin only.
func (s *HubService) DeleteUser(ctx context.Context, p *auth.Principal, userID string) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}
	if p.User != nil && p.User.ID == userID {
		return errors.NewValidationError("cannot delete own account", nil)
	}
	return s.Users.Delete(ctx, userID)
}

// UserSites returns the sites assigned to a user. sys_admin only.
func (s *HubService) UserSites(ctx context.Context, p *auth.Principal, userID string) ([]*models.Site, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	if _, err := s.Users.Get(ctx, userID); err != nil {
		return nil, err
	}

	siteIDs, err := s.Users.AssignedSiteIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	sites := make([]*models.Site, 0, len(siteIDs))
	for _, id := range siteIDs {
		site, err := s.Sites.Get(ctx, id)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, nil
}

// AssignUserSite grants a user access to a site. Idempotent. sys_admin
// only.
func (s *HubService) AssignUserSite(ctx context.Context, p *auth.Principal, userID, siteID string) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}
	if _, err := s.Users.Get(ctx, userID); err != nil {
		return err
	}
	if _, err := s.Sites.Get(ctx, siteID); err != nil {
		return err
	}
	return s.Users.AssignSite(ctx, userID, siteID)
}

// UnassignUserSite revokes a user's access to a site. sys_admin only.
func (s *HubService) UnassignUserSite(ctx context.Context, p *auth.Principal, userID, siteID string) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}
	return s.Users.UnassignSite(ctx, userID, siteID)
}
