// FilePath: internal/ingest/payload.go
package ingest

import (
	"encoding/json"
	"strings"

	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
)

// Entry is one parsed sensor measurement from a telemetry message. Raw
// keeps the original payload fragment for the audit column.
type Entry struct {
	SensorName string
	SensorType models.SensorType
	Value      float64
	Unit       string
	Raw        json.RawMessage
}

// Message is a fully parsed telemetry payload.
type Message struct {
	DeviceUID string
	Entries   []Entry
}

type sensorEntry struct {
	Type  string   `json:"type"`
	ID    string   `json:"id"`
	Value *float64 `json:"value"`
}

type envelope struct {
	DeviceID  string            `json:"device_id"`
	DeviceUID string            `json:"device_uid"`
	Sensors   []json.RawMessage `json:"sensors"`
}

// Fields of the flattened legacy payload form that carry measurements,
// keyed by their sensor type.
var legacyFields = map[string]models.SensorType{
	"temperature":   models.Temperature,
	"soil_moisture": models.Moisture,
	"light":         models.Light,
}

// ParsePayload decodes a telemetry payload in either the nested form
// {"device_id","sensors":[{"type","id","value"},...]} or the flattened
// legacy form {"device_id","temperature","soil_moisture","location"}.
// Any malformed input rejects the whole message; a rejected message must
// produce no partial writes downstream.
func ParsePayload(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.NewValidationError("payload is not a valid json object", err)
	}

	uid := env.DeviceID
	if uid == "" {
		uid = env.DeviceUID
	}
	if uid == "" {
		return nil, errors.NewValidationError("payload is missing device_id", nil)
	}
	// Devices that failed serial provisioning report a trailing UNKNOWN;
	// their telemetry is not attributable and is dropped.
	if strings.HasSuffix(uid, "UNKNOWN") {
		return nil, errors.NewValidationError("device has UNKNOWN serial", nil)
	}

	msg := &Message{DeviceUID: uid}

	if env.Sensors != nil {
		for _, fragment := range env.Sensors {
			var entry sensorEntry
			if err := json.Unmarshal(fragment, &entry); err != nil {
				return nil, errors.NewValidationError("malformed sensor entry", err)
			}
			if entry.Type == "" || entry.ID == "" || entry.Value == nil {
				return nil, errors.NewValidationError("sensor entry requires type, id and numeric value", nil)
			}
			sensorType := models.SensorType(entry.Type)
			msg.Entries = append(msg.Entries, Entry{
				SensorName: entry.ID,
				SensorType: sensorType,
				Value:      *entry.Value,
				Unit:       models.UnitFor(sensorType),
				Raw:        fragment,
			})
		}
		if len(msg.Entries) == 0 {
			return nil, errors.NewValidationError("payload contains no sensor entries", nil)
		}
		return msg, nil
	}

	// Legacy flattened form: measurement values live directly on the
	// top-level object.
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, errors.NewValidationError("payload is not a valid json object", err)
	}
	for field, sensorType := range legacyFields {
		fragment, ok := flat[field]
		if !ok {
			continue
		}
		var value float64
		if err := json.Unmarshal(fragment, &value); err != nil {
			return nil, errors.NewValidationError("legacy field "+field+" is not numeric", err)
		}
		msg.Entries = append(msg.Entries, Entry{
			SensorName: field,
			SensorType: sensorType,
			Value:      value,
			Unit:       models.UnitFor(sensorType),
			Raw:        json.RawMessage(data),
		})
	}
	if len(msg.Entries) == 0 {
		return nil, errors.NewValidationError("payload contains no sensor entries", nil)
	}
	return msg, nil
}
