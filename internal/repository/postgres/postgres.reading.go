// FilePath: internal/repository/postgres/postgres.reading.go
package postgres

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/database"
	"github.com/smartallotment/hub/internal/models"
)

type ReadingRepo struct {
	PostgresBaseRepo
}

func NewReadingRepository(db database.DB) *ReadingRepo {
	repo := &PostgresBaseRepo{db: db}
	return &ReadingRepo{PostgresBaseRepo: *repo}
}

// Insert appends one reading row. Rows are never updated or deleted by
// the ingestion path.
func (r *ReadingRepo) Insert(ctx context.Context, reading *models.Reading) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if reading.ID == "" {
		reading.ID = nuts.NID("rd", 12)
	}
	query := `
		INSERT INTO sensor_data (
			id, site_id, device_id, time,
			sensor_name, sensor_type, value, unit, raw
		) VALUES (
			:id, :site_id, :device_id, :time,
			:sensor_name, :sensor_type, :value, :unit, :raw
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, reading)
	if err != nil {
		return wrapStoreError("failed to insert reading", err)
	}
	return nil
}

// Latest returns the most recent reading per sensor name on the device.
func (r *ReadingRepo) Latest(ctx context.Context, deviceID string) ([]models.ReadingPoint, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	points := []models.ReadingPoint{}
	query := `
		SELECT DISTINCT ON (sensor_name)
			sensor_name, sensor_type, value, unit, time
		FROM sensor_data
		WHERE device_id = $1
		ORDER BY sensor_name, time DESC`

	err := r.db.GetDB().SelectContext(ctx, &points, query, deviceID)
	if err != nil {
		return nil, wrapStoreError("failed to get latest readings", err)
	}
	return points, nil
}

// History returns readings in [from, to) ordered by ascending time.
func (r *ReadingRepo) History(ctx context.Context, deviceID string, from, to time.Time) ([]models.ReadingPoint, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	points := []models.ReadingPoint{}
	query := `
		SELECT sensor_name, sensor_type, value, unit, time
		FROM sensor_data
		WHERE device_id = $1 AND time >= $2 AND time < $3
		ORDER BY time ASC`

	err := r.db.GetDB().SelectContext(ctx, &points, query, deviceID, from, to)
	if err != nil {
		return nil, wrapStoreError("failed to get reading history", err)
	}
	return points, nil
}
