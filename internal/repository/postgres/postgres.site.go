// FilePath: internal/repository/postgres/postgres.site.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/smartallotment/hub/internal/database"
	"github.com/smartallotment/hub/internal/errors"
	"github.com/smartallotment/hub/internal/models"
)

type SiteRepo struct {
	PostgresBaseRepo
}

func NewSiteRepository(db database.DB) *SiteRepo {
	repo := &PostgresBaseRepo{db: db}
	return &SiteRepo{PostgresBaseRepo: *repo}
}

func (r *SiteRepo) Create(ctx context.Context, site *models.Site) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	query := `
		INSERT INTO sites (id, site_code, friendly_name, created_at)
		VALUES (:id, :site_code, :friendly_name, :created_at)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, site)
	if err != nil {
		return wrapStoreError("failed to create site", err)
	}
	return nil
}

func (r *SiteRepo) Get(ctx context.Context, id string) (*models.Site, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	site := &models.Site{}
	query := `SELECT * FROM sites WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, site, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("site not found", err)
		}
		return nil, wrapStoreError("failed to get site", err)
	}
	return site, nil
}

func (r *SiteRepo) GetByCode(ctx context.Context, code string) (*models.Site, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	site := &models.Site{}
	query := `SELECT * FROM sites WHERE site_code = $1`

	err := r.db.GetDB().GetContext(ctx, site, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("site not found", err)
		}
		return nil, wrapStoreError("failed to get site", err)
	}
	return site, nil
}

func (r *SiteRepo) List(ctx context.Context) ([]*models.Site, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	sites := []*models.Site{}
	query := `SELECT * FROM sites ORDER BY site_code ASC`

	err := r.db.GetDB().SelectContext(ctx, &sites, query)
	if err != nil {
		return nil, wrapStoreError("failed to list sites", err)
	}
	return sites, nil
}
