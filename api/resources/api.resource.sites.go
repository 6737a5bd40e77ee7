// FilePath: api/resources/api.resource.sites.go
package resources

import (
	"encoding/json"
	"net/http"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/api/middleware"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/hubservice"
)

// SiteHandlers serves site listing and creation.
type SiteHandlers struct {
	hubservice *hubservice.HubService
}

// ListSites returns the sites visible to the principal.
func (h *SiteHandlers) ListSites(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	sites, err := h.hubservice.ListSites(r.Context(), principal)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, sites)
}

// CreateSite creates a new site. Admin only.
func (h *SiteHandlers) CreateSite(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	var in hubservice.SiteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	site, err := h.hubservice.CreateSite(r.Context(), principal, in)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusCreated, site)
}
