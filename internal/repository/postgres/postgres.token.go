// FilePath: internal/repository/postgres/postgres.token.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	nuts "github.com/vaudience/go-nuts"

	"github.com/smartallotment/hub/internal/database"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
)

type TokenRepo struct {
	PostgresBaseRepo
}

func NewTokenRepository(db database.DB) *TokenRepo {
	repo := &PostgresBaseRepo{db: db}
	return &TokenRepo{PostgresBaseRepo: *repo}
}

// tokenRow is the storage shape: the tagged TokenOwner union maps onto
// two nullable columns guarded by a CHECK constraint.
type tokenRow struct {
	ID          string         `db:"id"`
	TokenHash   string         `db:"token_hash"`
	UserID      sql.NullString `db:"user_id"`
	DeviceID    sql.NullString `db:"device_id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Scopes      pq.StringArray `db:"scopes"`
	Active      bool           `db:"active"`
	LastUsed    sql.NullTime   `db:"last_used"`
	ExpiresAt   sql.NullTime   `db:"expires_at"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
}

func rowFromToken(t *models.APIToken) (*tokenRow, error) {
	row := &tokenRow{
		ID:          t.ID,
		TokenHash:   t.TokenHash,
		Name:        t.Name,
		Description: t.Description,
		Scopes:      t.Scopes,
		Active:      t.Active,
		LastUsed:    t.LastUsed,
		ExpiresAt:   t.ExpiresAt,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
	}
	switch t.Owner.Kind {
	case models.OwnerUser:
		row.UserID = sql.NullString{String: t.Owner.ID, Valid: true}
	case models.OwnerDevice:
		row.DeviceID = sql.NullString{String: t.Owner.ID, Valid: true}
	default:
		return nil, errors.NewValidationError("api token owner must be a user or a device", nil)
	}
	return row, nil
}

func (row *tokenRow) toToken() *models.APIToken {
	t := &models.APIToken{
		ID:          row.ID,
		TokenHash:   row.TokenHash,
		Name:        row.Name,
		Description: row.Description,
		Scopes:      row.Scopes,
		Active:      row.Active,
		LastUsed:    row.LastUsed,
		ExpiresAt:   row.ExpiresAt,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
	}
	if row.UserID.Valid {
		t.Owner = models.UserOwner(row.UserID.String)
	} else {
		t.Owner = models.DeviceOwner(row.DeviceID.String)
	}
	return t
}

func (r *TokenRepo) Create(ctx context.Context, token *models.APIToken) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if token.ID == "" {
		token.ID = nuts.NID("tok", 12)
	}
	row, err := rowFromToken(token)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO api_tokens (
			id, token_hash, user_id, device_id, name, description,
			scopes, active, last_used, expires_at, created_by, created_at
		) VALUES (
			:id, :token_hash, :user_id, :device_id, :name, :description,
			:scopes, :active, :last_used, :expires_at, :created_by, :created_at
		)`

	_, err = r.db.GetDB().NamedExecContext(ctx, query, row)
	if err != nil {
		return wrapStoreError("failed to create api token", err)
	}
	return nil
}

func (r *TokenRepo) GetByHash(ctx context.Context, hash string) (*models.APIToken, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	row := &tokenRow{}
	query := `SELECT * FROM api_tokens WHERE token_hash = $1`

	err := r.db.GetDB().GetContext(ctx, row, query, hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("api token not found", err)
		}
		return nil, wrapStoreError("failed to get api token", err)
	}
	return row.toToken(), nil
}

func (r *TokenRepo) List(ctx context.Context) ([]*models.APIToken, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	rows := []*tokenRow{}
	query := `SELECT * FROM api_tokens ORDER BY created_at DESC`

	err := r.db.GetDB().SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, wrapStoreError("failed to list api tokens", err)
	}

	tokens := make([]*models.APIToken, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, row.toToken())
	}
	return tokens, nil
}

func (r *TokenRepo) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `UPDATE api_tokens SET last_used = $1 WHERE id = $2`

	_, err := r.db.GetDB().ExecContext(ctx, query, at, id)
	if err != nil {
		return wrapStoreError("failed to update token last used", err)
	}
	return nil
}

func (r *TokenRepo) Deactivate(ctx context.Context, id string) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `UPDATE api_tokens SET active = FALSE WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return wrapStoreError("failed to deactivate api token", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("api token not found", nil)
	}
	return nil
}

func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, now)
	if err != nil {
		return 0, wrapStoreError("failed to delete expired tokens", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows > 0 {
		nuts.L.Infof("[TokenRepo] Deleted %d expired api tokens", rows)
	}
	return rows, nil
}
