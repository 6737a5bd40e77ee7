package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/auth"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/monitoring"
)

// SessionCookieName is the browser session cookie issued at login.
const SessionCookieName = "session_token"

type contextKey string

const principalKey contextKey = "principal"

// AuthMiddleware authenticates every request with either a session
// cookie or a bearer api token and stores the resolved principal in the
// request context. Authorization decisions live with the handlers; this
// layer only establishes identity.
type AuthMiddleware struct {
	auth    *auth.Service
	monitor *monitoring.Service
}

func NewAuthMiddleware(authService *auth.Service, monitor *monitoring.Service) *AuthMiddleware {
	return &AuthMiddleware{auth: authService, monitor: monitor}
}

// Authenticate validates the presented credential and adds the principal
// to the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.resolve(r)
		if err != nil {
			m.monitor.AuthFailure()
			handleError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) resolve(r *http.Request) (*auth.Principal, error) {
	if token := extractBearer(r); token != "" {
		return m.auth.AuthenticateToken(r.Context(), token)
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return m.auth.AuthenticateSession(r.Context(), cookie.Value)
	}
	return nil, errors.NewAuthError("no credentials provided", nil)
}

// PrincipalFrom extracts the authenticated principal from the request
// context.
func PrincipalFrom(ctx context.Context) (*auth.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(*auth.Principal)
	return principal, ok
}

// WithPrincipal returns a context carrying the principal. Used by tests
// and by the login handler.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func handleError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*errors.APIError)
	if !ok {
		apiErr = errors.NewInternalError("internal server error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code)
	if encodeErr := json.NewEncoder(w).Encode(apiErr); encodeErr != nil {
		nuts.L.Errorf("[Middleware] Failed to encode error response: %v", encodeErr)
	}
}
