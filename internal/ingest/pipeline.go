// FilePath: internal/ingest/pipeline.go
package ingest

import (
	"context"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/config"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
	"github.com/smartallotment/hub/internal/monitoring"
	"github.com/smartallotment/hub/internal/registry"
	"github.com/smartallotment/hub/internal/repository"
)

// LastValueWriter is the write-through side of the last-value cache.
// The pipeline treats it as best-effort: cache errors are logged, never
// propagated into the write path.
type LastValueWriter interface {
	Put(ctx context.Context, deviceUID string, point models.ReadingPoint) error
}

// Pipeline turns inbound telemetry messages into validated rows in the
// time-series store. Each message moves Received → Parsed → Resolved →
// Stored, or Received → Rejected; sensor entries within a message succeed
// or fail independently. Messages are handled by a bounded worker pool so
// one slow device does not delay others; per-device store ordering is not
// guaranteed under concurrent dispatch.
type Pipeline struct {
	resolver *registry.Resolver
	readings repository.ReadingRepository
	cache    LastValueWriter
	monitor  *monitoring.Service
	cfg      config.IngestConfig

	jobs chan []byte
	wg   sync.WaitGroup
}

func New(
	resolver *registry.Resolver,
	readings repository.ReadingRepository,
	cache LastValueWriter,
	monitor *monitoring.Service,
	cfg config.IngestConfig,
) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		readings: readings,
		cache:    cache,
		monitor:  monitor,
		cfg:      cfg,
		jobs:     make(chan []byte, cfg.Workers*4),
	}
}

// Start launches the worker pool. Workers drain the queue until ctx is
// cancelled; Wait blocks until they have finished.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-p.jobs:
					if !ok {
						return
					}
					p.Process(ctx, payload)
				}
			}
		}()
	}
	nuts.L.Infof("[Ingest] Started %d pipeline workers", p.cfg.Workers)
}

// Wait blocks until all workers have stopped.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Enqueue hands a raw transport payload to the worker pool. When the
// queue is full the message is dropped and counted; the transport gives
// no delivery guarantee to uphold here.
func (p *Pipeline) Enqueue(payload []byte) {
	p.monitor.MessageReceived()
	select {
	case p.jobs <- payload:
	default:
		p.monitor.MessageRejected()
		nuts.L.Warnf("[Ingest] Queue full, dropping message (%d bytes)", len(payload))
	}
}

// Process runs one message through the pipeline synchronously. A parse
// failure rejects the whole message with no partial writes; after that
// point each sensor entry is resolved and stored independently.
func (p *Pipeline) Process(ctx context.Context, payload []byte) {
	msg, err := ParsePayload(payload)
	if err != nil {
		p.monitor.MessageRejected()
		nuts.L.Warnf("[Ingest] Rejected message: %v (raw: %s)", err, string(payload))
		return
	}

	now := time.Now().UTC()
	for _, entry := range msg.Entries {
		if err := p.processEntry(ctx, msg.DeviceUID, entry, now); err != nil {
			p.monitor.EntryFailed()
			nuts.L.Errorf("[Ingest] Failed entry %s/%s: %v", msg.DeviceUID, entry.SensorName, err)
			continue
		}
		p.monitor.ReadingStored()
	}
}

func (p *Pipeline) processEntry(ctx context.Context, deviceUID string, entry Entry, at time.Time) error {
	var res *registry.Resolution
	err := p.withRetry(ctx, func() error {
		var err error
		res, err = p.resolver.Resolve(ctx, deviceUID, entry.SensorName, entry.SensorType, entry.Unit, entry.Value, at)
		return err
	})
	if err != nil {
		return err
	}

	if !res.Sensor.Active {
		// Deactivation is an explicit admin action; traffic never undoes
		// it. The reading is still stored.
		nuts.L.Debugf("[Ingest] Reading for deactivated sensor %s/%s", deviceUID, entry.SensorName)
	}

	reading := &models.Reading{
		SiteID:     res.Device.SiteID,
		DeviceID:   res.Device.ID,
		Time:       at,
		SensorName: entry.SensorName,
		SensorType: entry.SensorType,
		Value:      entry.Value,
		Unit:       entry.Unit,
		Raw:        entry.Raw,
	}
	if err := p.withRetry(ctx, func() error {
		return p.readings.Insert(ctx, reading)
	}); err != nil {
		return err
	}

	if p.cache != nil {
		point := models.ReadingPoint{
			SensorName:  entry.SensorName,
			SensorType:  entry.SensorType,
			SensorValue: entry.Value,
			Unit:        entry.Unit,
			Timestamp:   at,
		}
		if err := p.cache.Put(ctx, deviceUID, point); err != nil {
			nuts.L.Warnf("[Ingest] Last-value cache write failed for %s: %v", deviceUID, err)
		}
	}
	return nil
}

// withRetry retries transient store failures with doubling backoff up to
// the configured attempt count. Non-transient errors surface immediately.
func (p *Pipeline) withRetry(ctx context.Context, op func() error) error {
	backoff := p.cfg.RetryBackoff
	var err error
	for attempt := 0; attempt <= p.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = op(); err == nil {
			return nil
		}
		if !errors.IsTransient(err) {
			return err
		}
	}
	return err
}
