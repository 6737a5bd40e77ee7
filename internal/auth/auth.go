// FilePath: internal/auth/auth.go
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"time"

	nuts "github.com/vaudience/go-nuts"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartallotment/hub/internal/config"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
	"github.com/smartallotment/hub/internal/repository"
)

// Service is the authorization layer: it turns presented credentials into
// a Principal and answers capability checks for every read/write path.
// Decisions are never cached beyond a single request, so revocation
// (deactivated user, deleted session, expired token) takes effect on the
// next check.
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   repository.TokenRepository
	devices  repository.DeviceRepository
	cfg      config.AuthConfig
}

func New(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens repository.TokenRepository,
	devices repository.DeviceRepository,
	cfg config.AuthConfig,
) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		devices:  devices,
		cfg:      cfg,
	}
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	cost := s.cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.NewInternalError("failed to hash password", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a password against its stored hash
func VerifyPassword(password, passwordHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}

// NewOpaqueToken mints a url-safe random credential value.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.NewInternalError("failed to generate token", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken derives the stored lookup hash for an API token value. Raw
// token values never touch the store or the logs.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Login authenticates username/password and opens a session. The session
// token is the only secret returned to the browser.
func (s *Service) Login(ctx context.Context, username, password, ipAddress, userAgent string) (*models.Session, *models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil, errors.NewAuthError("invalid username or password", nil)
		}
		return nil, nil, err
	}
	if !user.Active || !VerifyPassword(password, user.PasswordHash) {
		return nil, nil, errors.NewAuthError("invalid username or password", nil)
	}

	token, err := NewOpaqueToken()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		nuts.L.Warnf("[Auth] Failed to update last login for %s: %v", user.Username, err)
	}

	return session, user, nil
}

// Logout invalidates the session.
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	return s.sessions.Delete(ctx, sessionToken)
}

// AuthenticateSession resolves a session token to a user principal.
func (s *Service) AuthenticateSession(ctx context.Context, token string) (*Principal, error) {
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewAuthError("invalid session", nil)
		}
		return nil, err
	}
	if session.Expired(time.Now().UTC()) {
		return nil, errors.NewAuthError("session expired", nil)
	}

	user, err := s.users.Get(ctx, session.UserID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewAuthError("invalid session", nil)
		}
		return nil, err
	}
	if !user.Active {
		return nil, errors.NewAuthError("user is deactivated", nil)
	}

	return &Principal{Kind: PrincipalSession, User: user, Session: session}, nil
}

// AuthenticateToken resolves a bearer API token to a principal. Usage
// updates last_used.
func (s *Service) AuthenticateToken(ctx context.Context, raw string) (*Principal, error) {
	token, err := s.tokens.GetByHash(ctx, HashToken(raw))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewAuthError("invalid api token", nil)
		}
		return nil, err
	}
	if !token.Usable(time.Now().UTC()) {
		return nil, errors.NewAuthError("api token expired or deactivated", nil)
	}

	principal := &Principal{Token: token}
	switch token.Owner.Kind {
	case models.OwnerUser:
		user, err := s.users.Get(ctx, token.Owner.ID)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, errors.NewAuthError("invalid api token", nil)
			}
			return nil, err
		}
		if !user.Active {
			return nil, errors.NewAuthError("user is deactivated", nil)
		}
		principal.Kind = PrincipalUserToken
		principal.User = user
	case models.OwnerDevice:
		device, err := s.devices.Get(ctx, token.Owner.ID)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, errors.NewAuthError("invalid api token", nil)
			}
			return nil, err
		}
		principal.Kind = PrincipalDeviceToken
		principal.Device = device
	default:
		return nil, errors.NewAuthError("invalid api token", nil)
	}

	if err := s.tokens.UpdateLastUsed(ctx, token.ID, time.Now().UTC()); err != nil {
		nuts.L.Warnf("[Auth] Failed to update last_used for token %s: %v", token.ID, err)
	}

	return principal, nil
}

// PermittedSites resolves the caller's permitted site set for this
// request. Nothing is cached across requests.
func (s *Service) PermittedSites(ctx context.Context, p *Principal) (SiteSet, error) {
	if p.IsAdmin() {
		return AllSites(), nil
	}
	switch p.Kind {
	case PrincipalSession, PrincipalUserToken:
		ids, err := s.users.AssignedSiteIDs(ctx, p.User.ID)
		if err != nil {
			return SiteSet{}, err
		}
		return SitesOf(ids), nil
	case PrincipalDeviceToken:
		if p.Device.Assigned() {
			return SitesOf([]string{p.Device.SiteID.String}), nil
		}
		return SitesOf(nil), nil
	}
	return SiteSet{}, errors.NewAuthError("unknown principal kind", nil)
}

// AuthorizeDevice checks whether the principal may read or mutate data
// belonging to the device. Device-scoped tokens are restricted to their
// own device. For everyone else the device's current site assignment
// decides; an unassigned device is visible only to sys_admins.
func (s *Service) AuthorizeDevice(ctx context.Context, p *Principal, device *models.Device) error {
	if p.Kind == PrincipalDeviceToken {
		if p.Device.ID == device.ID {
			return nil
		}
		return ErrDeviceAccessDenied()
	}
	if p.IsAdmin() {
		return nil
	}
	if !device.Assigned() {
		return ErrDeviceAccessDenied()
	}

	sites, err := s.PermittedSites(ctx, p)
	if err != nil {
		return err
	}
	if !sites.Contains(device.SiteID.String) {
		return ErrDeviceAccessDenied()
	}
	return nil
}

// RequireScope enforces the operation scope for token principals.
// Session principals are authorized by role and site only.
func RequireScope(p *Principal, scope string) error {
	if p.Token == nil {
		return nil
	}
	if !p.Token.HasScope(scope) {
		return errors.NewAuthorizationError("token missing required scope "+scope, nil)
	}
	return nil
}

// RequireAdmin restricts an operation to sys_admin users.
func RequireAdmin(p *Principal) error {
	if !p.IsAdmin() {
		return errors.NewAuthorizationError("sys_admin role required", nil)
	}
	return nil
}

// ErrDeviceAccessDenied is the uniform authorization failure for device
// access. Callers get the same error whether the device is out of scope
// or does not exist, so denial leaks nothing about existence.
func ErrDeviceAccessDenied() *errors.APIError {
	return errors.NewAuthorizationError("access to device denied", nil)
}

// MintToken creates a new API token for the given owner and returns the
// raw value exactly once; only the hash is persisted.
func (s *Service) MintToken(ctx context.Context, owner models.TokenOwner, name, description string, scopes []string, expiresAt *time.Time, createdBy string) (string, *models.APIToken, error) {
	raw, err := NewOpaqueToken()
	if err != nil {
		return "", nil, err
	}

	token := &models.APIToken{
		TokenHash:   HashToken(raw),
		Owner:       owner,
		Name:        name,
		Description: description,
		Scopes:      scopes,
		Active:      true,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}
	if expiresAt != nil {
		token.ExpiresAt = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", nil, err
	}
	return raw, token, nil
}
