// FilePath: api/resources/api.resource.auth.go
package resources

import (
	"encoding/json"
	"net/http"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/api/middleware"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/hubservice"
)

// AuthHandlers serves login, logout and whoami.
type AuthHandlers struct {
	hubservice *hubservice.HubService
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the credentials, opens a session and hands the opaque
// session token back as an http-only cookie.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if req.Username == "" || req.Password == "" {
		respondWithError(w, errors.NewValidationError("username and password are required", nil).WithRequestID(requestID))
		return
	}

	session, user, err := h.hubservice.Auth.Login(r.Context(), req.Username, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondWithJSON(w, http.StatusOK, user)
}

// Logout deletes the server-side session and clears the cookie. Idempotent.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.hubservice.Auth.Logout(r.Context(), cookie.Value); err != nil {
			respondWithServiceError(w, err, requestID)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me describes the authenticated principal.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	resp := map[string]interface{}{
		"kind": principal.Kind,
		"name": principal.Name(),
	}
	if principal.User != nil {
		resp["user"] = principal.User
	}
	if principal.Device != nil {
		resp["device"] = principal.Device
	}
	if principal.Token != nil {
		resp["scopes"] = principal.Token.Scopes
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
