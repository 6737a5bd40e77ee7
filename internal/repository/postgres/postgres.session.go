// FilePath: internal/repository/postgres/postgres.session.go
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

type SessionRepo struct {
	PostgresBaseRepo
}

func NewSessionRepository(db database.DB) *SessionRepo {
	repo := &PostgresBaseRepo{db: db}
	return &SessionRepo{PostgresBaseRepo: *repo}
}

func (r *SessionRepo) Create(ctx context.Context, session *models.Session) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `
		INSERT INTO sessions (
			session_token, user_id, created_at, expires_at, ip_address, user_agent
		) VALUES (
			:session_token, :user_id, :created_at, :expires_at, :ip_address, :user_agent
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, session)
	if err != nil {
		return wrapStoreError("failed to create session", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, token string) (*models.Session, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	session := &models.Session{}
	query := `SELECT * FROM sessions WHERE session_token = $1`

	err := r.db.GetDB().GetContext(ctx, session, query, token)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("session not found", err)
		}
		return nil, wrapStoreError("failed to get session", err)
	}
	return session, nil
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `DELETE FROM sessions WHERE session_token = $1`

	_, err := r.db.GetDB().ExecContext(ctx, query, token)
	if err != nil {
		return wrapStoreError("failed to delete session", err)
	}
	return nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `DELETE FROM sessions WHERE expires_at < $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, now)
	if err != nil {
		return 0, wrapStoreError("failed to delete expired sessions", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows > 0 {
		nuts.L.Infof("[SessionRepo] Deleted %d expired sessions", rows)
	}
	return rows, nil
}
