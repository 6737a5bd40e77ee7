// FilePath: api/resources/resources.go
package resources

import (
	"encoding/json"
	"net/http"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/hubservice"
	"github.com/smartallotment/hub/internal/monitoring"
)

// Resources holds all HTTP resource handlers
type Resources struct {
	Auth        *AuthHandlers
	Devices     *DeviceHandlers
	Sensors     *SensorHandlers
	Sites       *SiteHandlers
	Users       *UserHandlers
	Tokens      *TokenHandlers
	HealthCheck func(w http.ResponseWriter, r *http.Request)
	Metrics     func(w http.ResponseWriter, r *http.Request)
}

// NewResources creates a new Resources instance
func NewResources(svc *hubservice.HubService, monitor *monitoring.Service) *Resources {
	return &Resources{
		Auth:    &AuthHandlers{hubservice: svc},
		Devices: &DeviceHandlers{hubservice: svc},
		Sensors: &SensorHandlers{hubservice: svc},
		Sites:   &SiteHandlers{hubservice: svc},
		Users:   &UserHandlers{hubservice: svc},
		Tokens:  &TokenHandlers{hubservice: svc},
		HealthCheck: func(w http.ResponseWriter, r *http.Request) {
			respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		},
		Metrics: func(w http.ResponseWriter, r *http.Request) {
			respondWithJSON(w, http.StatusOK, monitor.Counters())
		},
	}
}

// SetHealthCheck sets the health check handler
func (r *Resources) SetHealthCheck(h func(w http.ResponseWriter, r *http.Request)) {
	r.HealthCheck = h
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		nuts.L.Errorf("[API] Failed to encode response: %v", err)
	}
}

func respondWithError(w http.ResponseWriter, apiErr *errors.APIError) {
	respondWithJSON(w, apiErr.Code, apiErr)
}

// respondWithServiceError maps any error coming out of the service layer
// to a JSON error response, preserving APIError codes and hiding
// everything else behind a 500.
func respondWithServiceError(w http.ResponseWriter, err error, requestID string) {
	if apiErr, ok := err.(*errors.APIError); ok {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	respondWithError(w, errors.NewInternalError("internal server error", err).WithRequestID(requestID))
}
