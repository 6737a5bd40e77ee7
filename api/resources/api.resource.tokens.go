// FilePath: api/resources/api.resource.tokens.go
package resources

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/api/middleware"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/hubservice"
)

// TokenHandlers serves the admin-only api-token endpoints.
type TokenHandlers struct {
	hubservice *hubservice.HubService
}

// MintToken creates a new api token. The raw token value appears only in
// this response; the store keeps a hash.
func (h *TokenHandlers) MintToken(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	var in hubservice.TokenInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	minted, err := h.hubservice.MintToken(r.Context(), principal, in)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusCreated, minted)
}

// ListTokens lists all tokens without their raw values.
func (h *TokenHandlers) ListTokens(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	tokens, err := h.hubservice.ListTokens(r.Context(), principal)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, tokens)
}

// RevokeToken deactivates a token immediately.
func (h *TokenHandlers) RevokeToken(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	tokenID := mux.Vars(r)["id"]

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	if err := h.hubservice.RevokeToken(r.Context(), principal, tokenID); err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
