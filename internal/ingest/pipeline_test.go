// FilePath: internal/ingest/pipeline_test.go
package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartallotment/hub/internal/config"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
	"github.com/smartallotment/hub/internal/monitoring"
	"github.com/smartallotment/hub/internal/registry"
	"github.com/smartallotment/hub/internal/repository"
	"github.com/smartallotment/hub/internal/repository/memory"
)

type pipelineFixture struct {
	devices  *memory.DeviceRepo
	sensors  *memory.SensorRepo
	readings *memory.ReadingRepo
	monitor  *monitoring.Service
	cache    *recordingCache
	pipeline *Pipeline
}

func newPipelineFixture(t *testing.T, store repository.ReadingRepository) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		devices:  memory.NewDeviceRepository(),
		sensors:  memory.NewSensorRepository(),
		readings: memory.NewReadingRepository(),
		monitor:  monitoring.NewService(),
		cache:    &recordingCache{},
	}
	if store == nil {
		store = f.readings
	}
	resolver := registry.New(f.devices, f.sensors)
	f.pipeline = New(resolver, store, f.cache, f.monitor, config.IngestConfig{
		Workers:       2,
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
	})
	return f
}

type recordingCache struct {
	mu     sync.Mutex
	points map[string][]models.ReadingPoint
}

func (c *recordingCache) Put(ctx context.Context, deviceUID string, point models.ReadingPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.points == nil {
		c.points = make(map[string][]models.ReadingPoint)
	}
	c.points[deviceUID] = append(c.points[deviceUID], point)
	return nil
}

// flakyReadings fails the first n inserts with a transient store error.
type flakyReadings struct {
	*memory.ReadingRepo
	mu       sync.Mutex
	failures int
}

func (f *flakyReadings) Insert(ctx context.Context, reading *models.Reading) error {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return errors.NewTransientError("connection reset", nil)
	}
	return f.ReadingRepo.Insert(ctx, reading)
}

func TestProcessFirstMessageCreatesRegistryRows(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	f.pipeline.Process(ctx, []byte(`{"device_id": "plot-11", "sensors": [{"type": "moisture", "id": "bed_1", "value": 41.2}]}`))

	devices, err := f.devices.List(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "plot-11", devices[0].UID)
	assert.True(t, devices[0].Active)
	assert.True(t, devices[0].LastSeen.Valid)

	sensors, err := f.sensors.ListByDevice(ctx, devices[0].ID)
	require.NoError(t, err)
	require.Len(t, sensors, 1)
	assert.Equal(t, "bed_1", sensors[0].SensorName)
	assert.True(t, sensors[0].Active)
	require.True(t, sensors[0].LastValue.Valid)
	assert.Equal(t, 41.2, sensors[0].LastValue.Float64)

	assert.Equal(t, 1, f.readings.Count())
}

func TestProcessSecondMessageUpdatesNotDuplicates(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	f.pipeline.Process(ctx, []byte(`{"device_id": "plot-11", "sensors": [{"type": "moisture", "id": "bed_1", "value": 41.2}]}`))
	f.pipeline.Process(ctx, []byte(`{"device_id": "plot-11", "sensors": [{"type": "moisture", "id": "bed_1", "value": 38.8}]}`))

	devices, err := f.devices.List(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	sensors, err := f.sensors.ListByDevice(ctx, devices[0].ID)
	require.NoError(t, err)
	require.Len(t, sensors, 1)
	assert.Equal(t, 38.8, sensors[0].LastValue.Float64)

	// Readings append, registry rows do not.
	assert.Equal(t, 2, f.readings.Count())
}

func TestProcessMalformedMessageWritesNothing(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	f.pipeline.Process(ctx, []byte(`{"device_id": "plot-11", "sensors": [{"type": "moisture", "id": "bed_1", "value": 41.2}, {"type": "temperature", "id": "air"}]}`))

	devices, err := f.devices.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, devices)
	assert.Equal(t, 0, f.readings.Count())
	assert.Equal(t, int64(1), f.monitor.Counters().MessagesRejected)
}

func TestProcessUnknownSerialRejected(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	f.pipeline.Process(ctx, []byte(`{"device_id": "esp32-UNKNOWN", "sensors": [{"type": "light", "id": "lux", "value": 3}]}`))

	devices, err := f.devices.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, devices)
	assert.Equal(t, 0, f.readings.Count())
}

func TestProcessDeactivatedSensorStoredNotReactivated(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	f.pipeline.Process(ctx, []byte(`{"device_id": "plot-11", "sensors": [{"type": "moisture", "id": "bed_1", "value": 41.2}]}`))

	devices, err := f.devices.List(ctx)
	require.NoError(t, err)
	sensors, err := f.sensors.ListByDevice(ctx, devices[0].ID)
	require.NoError(t, err)
	require.NoError(t, f.sensors.SetActive(ctx, sensors[0].ID, false))

	f.pipeline.Process(ctx, []byte(`{"device_id": "plot-11", "sensors": [{"type": "moisture", "id": "bed_1", "value": 12.0}]}`))

	sensors, err = f.sensors.ListByDevice(ctx, devices[0].ID)
	require.NoError(t, err)
	assert.False(t, sensors[0].Active, "traffic must not reactivate a sensor")
	assert.Equal(t, 12.0, sensors[0].LastValue.Float64)
	assert.Equal(t, 2, f.readings.Count(), "readings keep flowing for deactivated sensors")
}

func TestProcessRetriesTransientStoreFailures(t *testing.T) {
	flaky := &flakyReadings{ReadingRepo: memory.NewReadingRepository(), failures: 2}
	f := newPipelineFixture(t, flaky)
	ctx := context.Background()

	f.pipeline.Process(ctx, []byte(`{"device_id": "plot-11", "sensors": [{"type": "moisture", "id": "bed_1", "value": 41.2}]}`))

	assert.Equal(t, 1, flaky.Count())
	assert.Equal(t, int64(1), f.monitor.Counters().ReadingsStored)
}

func TestProcessGivesUpAfterRetryBudget(t *testing.T) {
	flaky := &flakyReadings{ReadingRepo: memory.NewReadingRepository(), failures: 10}
	f := newPipelineFixture(t, flaky)
	ctx := context.Background()

	f.pipeline.Process(ctx, []byte(`{"device_id": "plot-11", "sensors": [{"type": "moisture", "id": "bed_1", "value": 41.2}]}`))

	assert.Equal(t, 0, flaky.Count())
	assert.Equal(t, int64(1), f.monitor.Counters().EntriesFailed)
}

func TestProcessPartialEntryFailure(t *testing.T) {
	flaky := &flakyReadings{ReadingRepo: memory.NewReadingRepository(), failures: 3}
	f := newPipelineFixture(t, flaky)
	ctx := context.Background()

	// Retry budget is 2, so the first entry burns 3 failed attempts and
	// fails; the second entry stores cleanly.
	f.pipeline.Process(ctx, []byte(`{"device_id": "plot-11", "sensors": [{"type": "moisture", "id": "bed_1", "value": 41.2}, {"type": "temperature", "id": "air", "value": 21.5}]}`))

	assert.Equal(t, 1, flaky.Count())
	counters := f.monitor.Counters()
	assert.Equal(t, int64(1), counters.EntriesFailed)
	assert.Equal(t, int64(1), counters.ReadingsStored)
}

func TestProcessWritesThroughToLastValueCache(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	f.pipeline.Process(ctx, []byte(`{"device_id": "plot-11", "sensors": [{"type": "temperature", "id": "air", "value": 21.5}]}`))

	require.Len(t, f.cache.points["plot-11"], 1)
	point := f.cache.points["plot-11"][0]
	assert.Equal(t, "air", point.SensorName)
	assert.Equal(t, 21.5, point.SensorValue)
	assert.Equal(t, "°C", point.Unit)
}

func TestEnqueueDrainsThroughWorkers(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f.pipeline.Start(ctx)

	for i := 0; i < 5; i++ {
		f.pipeline.Enqueue([]byte(`{"device_id": "plot-11", "sensors": [{"type": "moisture", "id": "bed_1", "value": 41.2}]}`))
	}

	require.Eventually(t, func() bool {
		return f.readings.Count() == 5
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	f.pipeline.Wait()
	assert.Equal(t, int64(5), f.monitor.Counters().MessagesReceived)
}
