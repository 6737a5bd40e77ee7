// FilePath: internal/hubservice/hubservice.tokens.go
package hubservice

import (
	"context"
	"time"

	"github.com/smartallotment/hub/internal/auth"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
)

// TokenInput carries an api-token mint request. Exactly one of UserID or
// DeviceUID must be set.
type TokenInput struct {
	UserID      string     `json:"user_id"`
	DeviceUID   string     `json:"device_uid"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scopes      []string   `json:"scopes"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// MintedToken pairs the persisted token with its raw value, which is
// shown exactly once at creation.
type MintedToken struct {
	Token *models.APIToken `json:"token"`
	Raw   string           `json:"raw_token"`
}

// MintToken creates a new api token. sys_admin only.
func (s *HubService) MintToken(ctx context.Context, p *auth.Principal, in TokenInput) (*MintedToken, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, errors.NewValidationError("token name is required", nil)
	}
	if (in.UserID == "") == (in.DeviceUID == "") {
		return nil, errors.NewValidationError("token owner must be exactly one of user_id or device_uid", nil)
	}

	var owner models.TokenOwner
	if in.UserID != "" {
		if _, err := s.Users.Get(ctx, in.UserID); err != nil {
			return nil, err
		}
		owner = models.UserOwner(in.UserID)
	} else {
		device, err := s.Devices.GetByUID(ctx, in.DeviceUID)
		if err != nil {
			return nil, err
		}
		owner = models.DeviceOwner(device.ID)
	}

	createdBy := ""
	if p.User != nil {
		createdBy = p.User.ID
	}
	raw, token, err := s.Auth.MintToken(ctx, owner, in.Name, in.Description, in.Scopes, in.ExpiresAt, createdBy)
	if err != nil {
		return nil, err
	}
	return &MintedToken{Token: token, Raw: raw}, nil
}

// ListTokens returns all api tokens (hashes omitted from JSON). sys_admin
// only.
func (s *HubService) ListTokens(ctx context.Context, p *auth.Principal) ([]*models.APIToken, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	return s.Tokens.List(ctx)
}

// RevokeToken deactivates an api token; the next authentication check
// rejects it. sys_admin only.
func (s *HubService) RevokeToken(ctx context.Context, p *auth.Principal, tokenID string) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}
	return s.Tokens.Deactivate(ctx, tokenID)
}
