// FilePath: internal/repository/postgres/postgres.user.go
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

type UserRepo struct {
	PostgresBaseRepo
}

func NewUserRepository(db database.DB) *UserRepo {
	repo := &PostgresBaseRepo{db: db}
	return &UserRepo{PostgresBaseRepo: *repo}
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if user.ID == "" {
		user.ID = nuts.NID("usr", 12)
	}
	query := `
		INSERT INTO users (
			id, username, email, password_hash, full_name,
			role, active, last_login, created_at
		) VALUES (
			:id, :username, :email, :password_hash, :full_name,
			:role, :active, :last_login, :created_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, user)
	if err != nil {
		return wrapStoreError("failed to create user", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	user := &models.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("user not found", err)
		}
		return nil, wrapStoreError("failed to get user", err)
	}
	return user, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	user := &models.User{}
	query := `SELECT * FROM users WHERE username = $1`

	err := r.db.GetDB().GetContext(ctx, user, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("user not found", err)
		}
		return nil, wrapStoreError("failed to get user", err)
	}
	return user, nil
}

func (r *UserRepo) Update(ctx context.Context, user *models.User) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `
		UPDATE users SET
			username = :username,
			email = :email,
			password_hash = :password_hash,
			full_name = :full_name,
			role = :role,
			active = :active
		WHERE id = :id`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, user)
	if err != nil {
		return wrapStoreError("failed to update user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("user not found", nil)
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return wrapStoreError("failed to delete user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("user not found", nil)
	}
	return nil
}

func (r *UserRepo) List(ctx context.Context) ([]*models.User, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	users := []*models.User{}
	query := `SELECT * FROM users ORDER BY username ASC`

	err := r.db.GetDB().SelectContext(ctx, &users, query)
	if err != nil {
		return nil, wrapStoreError("failed to list users", err)
	}
	return users, nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `UPDATE users SET last_login = $1 WHERE id = $2`

	_, err := r.db.GetDB().ExecContext(ctx, query, at, id)
	if err != nil {
		return wrapStoreError("failed to update last login", err)
	}
	return nil
}

func (r *UserRepo) AssignedSiteIDs(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	siteIDs := []string{}
	query := `SELECT site_id FROM user_site_assignments WHERE user_id = $1`

	err := r.db.GetDB().SelectContext(ctx, &siteIDs, query, userID)
	if err != nil {
		return nil, wrapStoreError("failed to list site assignments", err)
	}
	return siteIDs, nil
}

func (r *UserRepo) AssignSite(ctx context.Context, userID, siteID string) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `
		INSERT INTO user_site_assignments (user_id, site_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, site_id) DO NOTHING`

	_, err := r.db.GetDB().ExecContext(ctx, query, userID, siteID, time.Now().UTC())
	if err != nil {
		return wrapStoreError("failed to assign site", err)
	}
	return nil
}

func (r *UserRepo) UnassignSite(ctx context.Context, userID, siteID string) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `DELETE FROM user_site_assignments WHERE user_id = $1 AND site_id = $2`

	result, err := r.db.GetDB().ExecContext(ctx, query, userID, siteID)
	if err != nil {
		return wrapStoreError("failed to unassign site", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("site assignment not found", nil)
	}
	return nil
}
