// FilePath: internal/repository/postgres/postgres.device.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/database"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
)

type DeviceRepo struct {
	PostgresBaseRepo
}

func NewDeviceRepository(db database.DB) *DeviceRepo {
	repo := &PostgresBaseRepo{db: db}
	return &DeviceRepo{PostgresBaseRepo: *repo}
}

// Resolve finds or creates the device row for uid in a single statement.
// The unique constraint on uid serializes concurrent first messages: the
// loser of the race lands on the DO UPDATE arm instead of creating a
// second row. Liveness is re-asserted on every call (active=TRUE,
// last_seen advanced).
func (r *DeviceRepo) Resolve(ctx context.Context, uid string, seenAt time.Time) (*models.Device, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	device := &models.Device{}
	query := `
		INSERT INTO devices (id, uid, active, last_seen, created_at)
		VALUES ($1, $2, TRUE, $3, $3)
		ON CONFLICT (uid) DO UPDATE
			SET active = TRUE,
			    last_seen = EXCLUDED.last_seen
		RETURNING *`

	id := nuts.NID("dev", 12)
	err := r.db.GetDB().GetContext(ctx, device, query, id, uid, seenAt)
	if err != nil {
		return nil, wrapStoreError("failed to resolve device", err)
	}
	return device, nil
}

func (r *DeviceRepo) Get(ctx context.Context, id string) (*models.Device, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	device := &models.Device{}
	query := `SELECT * FROM devices WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, device, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("device not found", err)
		}
		return nil, wrapStoreError("failed to get device", err)
	}
	return device, nil
}

func (r *DeviceRepo) GetByUID(ctx context.Context, uid string) (*models.Device, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	device := &models.Device{}
	query := `SELECT * FROM devices WHERE uid = $1`

	err := r.db.GetDB().GetContext(ctx, device, query, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("device not found", err)
		}
		return nil, wrapStoreError("failed to get device", err)
	}
	return device, nil
}

func (r *DeviceRepo) List(ctx context.Context) ([]*models.Device, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	devices := []*models.Device{}
	query := `SELECT * FROM devices ORDER BY uid ASC`

	err := r.db.GetDB().SelectContext(ctx, &devices, query)
	if err != nil {
		return nil, wrapStoreError("failed to list devices", err)
	}
	return devices, nil
}

func (r *DeviceRepo) ListBySites(ctx context.Context, siteIDs []string) ([]*models.Device, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	devices := []*models.Device{}
	if len(siteIDs) == 0 {
		return devices, nil
	}
	query := `SELECT * FROM devices WHERE site_id = ANY($1) ORDER BY uid ASC`

	err := r.db.GetDB().SelectContext(ctx, &devices, query, sliceParam(siteIDs))
	if err != nil {
		return nil, wrapStoreError("failed to list devices", err)
	}
	return devices, nil
}

func (r *DeviceRepo) AssignSite(ctx context.Context, deviceID, siteID string) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `UPDATE devices SET site_id = $1 WHERE id = $2`

	result, err := r.db.GetDB().ExecContext(ctx, query, siteID, deviceID)
	if err != nil {
		return wrapStoreError("failed to assign device to site", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("device not found", nil)
	}
	return nil
}
