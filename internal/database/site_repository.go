package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gridcast/gridcast/internal/models"
	"github.com/shopspring/decimal"
)

// SiteRepository handles database operations for generation sites.
type SiteRepository struct {
	db *sql.DB
}

// NewSiteRepository creates a new site repository.
func NewSiteRepository(db *sql.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// CreateSite inserts a new site and populates its ID and timestamps.
// Returns ErrDuplicate when a site already exists at the same coordinates.
func (r *SiteRepository) CreateSite(ctx context.Context, site *models.Site) error {
	if err := site.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO sites (name, site_type, latitude, longitude, capacity_mw)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		site.Name, site.SiteType, site.Latitude, site.Longitude, nullDecimal(site.CapacityMW),
	).Scan(&site.ID, &site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: site at (%f, %f)", ErrDuplicate, site.Latitude, site.Longitude)
		}
		return fmt.Errorf("failed to create site: %w", err)
	}
	return nil
}

// GetSite retrieves a site by ID. Returns nil without error when not found.
func (r *SiteRepository) GetSite(ctx context.Context, id int64) (*models.Site, error) {
	query := `
		SELECT id, name, site_type, latitude, longitude, capacity_mw, created_at, updated_at
		FROM sites
		WHERE id = $1`

	site, err := scanSite(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	return site, nil
}

// ListSites returns all sites ordered by name, optionally filtered by type.
func (r *SiteRepository) ListSites(ctx context.Context, siteType string) ([]models.Site, error) {
	query := `
		SELECT id, name, site_type, latitude, longitude, capacity_mw, created_at, updated_at
		FROM sites`
	args := []interface{}{}
	if siteType != "" {
		query += ` WHERE site_type = $1`
		args = append(args, siteType)
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

// UpdateSite updates a site's mutable fields, reporting whether it existed.
func (r *SiteRepository) UpdateSite(ctx context.Context, site *models.Site) (bool, error) {
	if err := site.Validate(); err != nil {
		return false, err
	}

	query := `
		UPDATE sites
		SET name = $1, site_type = $2, latitude = $3, longitude = $4,
		    capacity_mw = $5, updated_at = NOW()
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		site.Name, site.SiteType, site.Latitude, site.Longitude, nullDecimal(site.CapacityMW), site.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("%w: site at (%f, %f)", ErrDuplicate, site.Latitude, site.Longitude)
		}
		return false, fmt.Errorf("failed to update site: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteSite removes a site, reporting whether it existed. Portfolio
// memberships and forecast results referencing the site cascade.
func (r *SiteRepository) DeleteSite(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sites WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete site: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSite(row rowScanner) (*models.Site, error) {
	var site models.Site
	var capacity decimal.NullDecimal

	err := row.Scan(&site.ID, &site.Name, &site.SiteType,
		&site.Latitude, &site.Longitude, &capacity,
		&site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if capacity.Valid {
		site.CapacityMW = &capacity.Decimal
	}
	return &site, nil
}

func nullDecimal(capacity *decimal.Decimal) decimal.NullDecimal {
	if capacity == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *capacity, Valid: true}
}
