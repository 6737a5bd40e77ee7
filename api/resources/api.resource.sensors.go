// FilePath: api/resources/api.resource.sensors.go
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

// SensorHandlers encapsulates the sensor-related HTTP handlers
type SensorHandlers struct {
	hubservice *hubservice.HubService
}

// ListSensors returns the sensors on devices visible to the principal.
func (h *SensorHandlers) ListSensors(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	sensors, err := h.hubservice.ListSensors(r.Context(), principal)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, sensors)
}

// RegisterSensor creates a sensor on a device ahead of its first reading.
func (h *SensorHandlers) RegisterSensor(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	var in hubservice.RegisterSensorInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	sensor, err := h.hubservice.RegisterSensor(r.Context(), principal, in)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusCreated, sensor)
}

// ActivateSensor re-enables a deactivated sensor. This endpoint is the
// only reactivation path; inbound telemetry never flips the flag.
func (h *SensorHandlers) ActivateSensor(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// DeactivateSensor disables a sensor without touching its history.
func (h *SensorHandlers) DeactivateSensor(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *SensorHandlers) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	requestID := nuts.NID("req", 12)
	sensorID := mux.Vars(r)["id"]

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	if err := h.hubservice.SetSensorActive(r.Context(), principal, sensorID, active); err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeleteSensor removes a sensor and its readings.
func (h *SensorHandlers) DeleteSensor(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	sensorID := mux.Vars(r)["id"]

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	if err := h.hubservice.DeleteSensor(r.Context(), principal, sensorID); err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
