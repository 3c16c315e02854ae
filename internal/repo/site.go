package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/reefline/divetrips/internal/domain"
)

// SiteRepo looks up the per-diver conservation fee of a dive site.
type SiteRepo interface {
	// FeePerDiver returns the site's fee, or nil when the site is unknown or
	// has no fee on record.
	FeePerDiver(ctx context.Context, siteID uuid.UUID) (*float64, error)
}

// pgSiteRepo is the Postgres implementation of SiteRepo.
type pgSiteRepo struct {
	db db
}

// NewSiteRepo constructs a SiteRepo backed by the provided db connection.
func NewSiteRepo(db db) SiteRepo {
	return &pgSiteRepo{db: db}
}

// FeePerDiver reads dive_sites.conservation_fee_per_diver.
func (r *pgSiteRepo) FeePerDiver(ctx context.Context, siteID uuid.UUID) (*float64, error) {
	const q = `SELECT conservation_fee_per_diver FROM dive_sites WHERE id = @id`

	var fee *float64
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": siteID}).Scan(&fee)
	if err != nil {
		if errors.Is(mapError(err), domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("repo.SiteRepo.FeePerDiver: %w", err)
	}
	return fee, nil
}
