// FilePath: internal/ingest/payload_test.go
package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartallotment/hub/internal/models"
)

func TestParsePayloadNestedForm(t *testing.T) {
	payload := []byte(`{
		"device_id": "allotment-7f3a",
		"sensors": [
			{"type": "moisture", "id": "bed_1", "value": 41.2},
			{"type": "temperature", "id": "air", "value": 21.5}
		]
	}`)

	msg, err := ParsePayload(payload)
	require.NoError(t, err)
	require.Equal(t, "allotment-7f3a", msg.DeviceUID)
	require.Len(t, msg.Entries, 2)

	assert.Equal(t, "bed_1", msg.Entries[0].SensorName)
	assert.Equal(t, models.Moisture, msg.Entries[0].SensorType)
	assert.Equal(t, 41.2, msg.Entries[0].Value)
	assert.Equal(t, "%", msg.Entries[0].Unit)

	assert.Equal(t, "air", msg.Entries[1].SensorName)
	assert.Equal(t, 21.5, msg.Entries[1].Value)
	assert.Equal(t, "°C", msg.Entries[1].Unit)
}

func TestParsePayloadDeviceUIDAlias(t *testing.T) {
	payload := []byte(`{"device_uid": "node-9", "sensors": [{"type": "light", "id": "lux", "value": 812}]}`)

	msg, err := ParsePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, "node-9", msg.DeviceUID)
	assert.Equal(t, "lx", msg.Entries[0].Unit)
}

func TestParsePayloadLegacyFlattenedForm(t *testing.T) {
	payload := []byte(`{"device_id": "old-fw-01", "temperature": 18.4, "soil_moisture": 55.0, "location": "plot 12"}`)

	msg, err := ParsePayload(payload)
	require.NoError(t, err)
	require.Len(t, msg.Entries, 2)

	byName := map[string]Entry{}
	for _, entry := range msg.Entries {
		byName[entry.SensorName] = entry
	}
	assert.Equal(t, models.Temperature, byName["temperature"].SensorType)
	assert.Equal(t, 18.4, byName["temperature"].Value)
	assert.Equal(t, models.Moisture, byName["soil_moisture"].SensorType)
	assert.Equal(t, 55.0, byName["soil_moisture"].Value)
}

func TestParsePayloadRejectsUnknownSerial(t *testing.T) {
	payload := []byte(`{"device_id": "esp32-UNKNOWN", "sensors": [{"type": "light", "id": "lux", "value": 1}]}`)

	_, err := ParsePayload(payload)
	require.Error(t, err)
}

func TestParsePayloadRejectsWholeMessageOnMalformedEntry(t *testing.T) {
	// Second entry lacks a value; the first must not survive either.
	payload := []byte(`{
		"device_id": "allotment-7f3a",
		"sensors": [
			{"type": "moisture", "id": "bed_1", "value": 41.2},
			{"type": "temperature", "id": "air"}
		]
	}`)

	msg, err := ParsePayload(payload)
	require.Error(t, err)
	assert.Nil(t, msg)
}

func TestParsePayloadRejects(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `moisture=41`},
		{"missing device id", `{"sensors": [{"type": "light", "id": "lux", "value": 1}]}`},
		{"empty sensors", `{"device_id": "d1", "sensors": []}`},
		{"no measurements", `{"device_id": "d1", "location": "plot 3"}`},
		{"non numeric value", `{"device_id": "d1", "sensors": [{"type": "light", "id": "lux", "value": "bright"}]}`},
		{"non numeric legacy field", `{"device_id": "d1", "temperature": "warm"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePayload([]byte(tc.payload))
			require.Error(t, err)
		})
	}
}
