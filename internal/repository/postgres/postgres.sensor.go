// FilePath: internal/repository/postgres/postgres.sensor.go
package postgres

import (
	"context"
	"database/sql"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/database"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
)

type SensorRepo struct {
	PostgresBaseRepo
}

func NewSensorRepository(db database.DB) *SensorRepo {
	repo := &PostgresBaseRepo{db: db}
	return &SensorRepo{PostgresBaseRepo: *repo}
}

func (r *SensorRepo) Create(ctx context.Context, sensor *models.Sensor) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if sensor.ID == "" {
		sensor.ID = nuts.NID("sen", 12)
	}
	query := `
		INSERT INTO sensors (
			id, device_id, sensor_name, sensor_type, unit,
			active, last_value, last_seen, created_at
		) VALUES (
			:id, :device_id, :sensor_name, :sensor_type, :unit,
			:active, :last_value, :last_seen, :created_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, sensor)
	if err != nil {
		return wrapStoreError("failed to create sensor", err)
	}
	return nil
}

// Resolve finds or creates the sensor for (device_id, sensor_name). On
// conflict only last_value and last_seen move; active stays whatever the
// administrator set it to, so traffic never reactivates a deactivated
// sensor. The returned row carries the stored active flag.
func (r *SensorRepo) Resolve(ctx context.Context, sensor *models.Sensor) (*models.Sensor, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	stored := &models.Sensor{}
	query := `
		INSERT INTO sensors (
			id, device_id, sensor_name, sensor_type, unit,
			active, last_value, last_seen, created_at
		) VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7, $7)
		ON CONFLICT ON CONSTRAINT uq_device_sensor DO UPDATE
			SET last_value = EXCLUDED.last_value,
			    last_seen = EXCLUDED.last_seen
		RETURNING *`

	id := nuts.NID("sen", 12)
	err := r.db.GetDB().GetContext(ctx, stored, query,
		id, sensor.DeviceID, sensor.SensorName, sensor.SensorType,
		sensor.Unit, sensor.LastValue, sensor.LastSeen,
	)
	if err != nil {
		return nil, wrapStoreError("failed to resolve sensor", err)
	}
	return stored, nil
}

func (r *SensorRepo) Get(ctx context.Context, id string) (*models.Sensor, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	sensor := &models.Sensor{}
	query := `SELECT * FROM sensors WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, sensor, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("sensor not found", err)
		}
		return nil, wrapStoreError("failed to get sensor", err)
	}
	return sensor, nil
}

func (r *SensorRepo) ListByDevice(ctx context.Context, deviceID string) ([]*models.Sensor, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	sensors := []*models.Sensor{}
	query := `SELECT * FROM sensors WHERE device_id = $1 ORDER BY sensor_name ASC`

	err := r.db.GetDB().SelectContext(ctx, &sensors, query, deviceID)
	if err != nil {
		return nil, wrapStoreError("failed to list sensors", err)
	}
	return sensors, nil
}

func (r *SensorRepo) List(ctx context.Context) ([]*models.Sensor, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	sensors := []*models.Sensor{}
	query := `SELECT * FROM sensors ORDER BY device_id, sensor_name ASC`

	err := r.db.GetDB().SelectContext(ctx, &sensors, query)
	if err != nil {
		return nil, wrapStoreError("failed to list sensors", err)
	}
	return sensors, nil
}

func (r *SensorRepo) SetActive(ctx context.Context, id string, active bool) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `UPDATE sensors SET active = $1 WHERE id = $2`

	result, err := r.db.GetDB().ExecContext(ctx, query, active, id)
	if err != nil {
		return wrapStoreError("failed to update sensor state", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("sensor not found", nil)
	}
	return nil
}

func (r *SensorRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `DELETE FROM sensors WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return wrapStoreError("failed to delete sensor", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("sensor not found", nil)
	}
	return nil
}
