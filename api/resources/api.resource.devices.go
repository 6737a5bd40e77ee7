// FilePath: api/resources/api.resource.devices.go
package resources

import (
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/api/middleware"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/hubservice"
)

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.RegisterConverter(time.Time{}, func(value string) reflect.Value {
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(t)
	})
	return d
}()

// DeviceHandlers serves the device listing and the per-device reading
// queries.
type DeviceHandlers struct {
	hubservice *hubservice.HubService
}

// ListDevices returns the devices visible to the principal.
func (h *DeviceHandlers) ListDevices(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	devices, err := h.hubservice.ListDevices(r.Context(), principal)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string][]hubservice.DeviceSummary{"devices": devices})
}

// GetLatest returns the most recent reading per sensor name for one device.
func (h *DeviceHandlers) GetLatest(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	deviceUID := mux.Vars(r)["deviceUid"]

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	points, err := h.hubservice.Latest(r.Context(), principal, deviceUID)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, points)
}

// GetHistory returns the readings of one device over a time window,
// oldest first. The window comes from ?hours=N or an explicit
// ?from=RFC3339&to=RFC3339 pair.
func (h *DeviceHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	deviceUID := mux.Vars(r)["deviceUid"]

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	var histRange hubservice.HistoryRange
	if err := queryDecoder.Decode(&histRange, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	points, err := h.hubservice.History(r.Context(), principal, deviceUID, histRange)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, points)
}

// AssignSite moves a device into a site. Admin only.
func (h *DeviceHandlers) AssignSite(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	vars := mux.Vars(r)

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		respondWithError(w, errors.NewAuthError("not authenticated", nil).WithRequestID(requestID))
		return
	}

	if err := h.hubservice.AssignDeviceSite(r.Context(), principal, vars["deviceUid"], vars["siteId"]); err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}
