// FilePath: internal/cache/cache.lastvalue.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartallotment/hub/internal/config"
	"github.com/smartallotment/hub/internal/models"
)

const (
	keyPrefix = "hub:last:"
	entryTTL  = 48 * time.Hour
)

// LastValueCache keeps the most recent reading per (device, sensor) in
// Redis as a write-through optimization for dashboards. It is never
// authoritative: the ingestion pipeline writes through after a successful
// store insert, and readers fall back to (and re-validate against) the
// store. Failures here are reported but must not fail the write path.
type LastValueCache struct {
	rdb *redis.Client
}

func New(cfg config.RedisConfig) *LastValueCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &LastValueCache{rdb: rdb}
}

func deviceKey(deviceUID string) string {
	return keyPrefix + deviceUID
}

// Put stores the latest point for one sensor on the device.
func (c *LastValueCache) Put(ctx context.Context, deviceUID string, point models.ReadingPoint) error {
	data, err := json.Marshal(point)
	if err != nil {
		return err
	}

	key := deviceKey(deviceUID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, point.SensorName, data)
	pipe.Expire(ctx, key, entryTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Device returns all cached latest points for the device, keyed by
// sensor name. A missing key yields an empty map, not an error.
func (c *LastValueCache) Device(ctx context.Context, deviceUID string) (map[string]models.ReadingPoint, error) {
	raw, err := c.rdb.HGetAll(ctx, deviceKey(deviceUID)).Result()
	if err != nil {
		return nil, err
	}

	points := make(map[string]models.ReadingPoint, len(raw))
	for name, data := range raw {
		var point models.ReadingPoint
		if err := json.Unmarshal([]byte(data), &point); err != nil {
			continue
		}
		points[name] = point
	}
	return points, nil
}

// Invalidate drops the cached entries for a device. Called on mutation
// paths that change registry state (sensor delete, device reassignment).
func (c *LastValueCache) Invalidate(ctx context.Context, deviceUID string) error {
	return c.rdb.Del(ctx, deviceKey(deviceUID)).Err()
}

func (c *LastValueCache) Close() error {
	return c.rdb.Close()
}
