package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gridcast/gridcast/internal/models"
)

// PortfolioRepository handles database operations for portfolios and their
// site memberships.
type PortfolioRepository struct {
	db *sql.DB
}

// NewPortfolioRepository creates a new portfolio repository.
func NewPortfolioRepository(db *sql.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// CreatePortfolio inserts a new portfolio and populates its ID and
// timestamps.
func (r *PortfolioRepository) CreatePortfolio(ctx context.Context, portfolio *models.Portfolio) error {
	if portfolio.Name == "" {
		return fmt.Errorf("portfolio name is required")
	}

	query := `
		INSERT INTO portfolios (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, portfolio.Name, portfolio.Description).
		Scan(&portfolio.ID, &portfolio.CreatedAt, &portfolio.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: portfolio %q", ErrDuplicate, portfolio.Name)
		}
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	return nil
}

// GetPortfolio retrieves a portfolio with its member sites ordered by site
// name. Returns nil without error when not found.
func (r *PortfolioRepository) GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM portfolios
		WHERE id = $1`

	var portfolio models.Portfolio
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&portfolio.ID, &portfolio.Name, &portfolio.Description,
		&portfolio.CreatedAt, &portfolio.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	sites, err := r.portfolioSites(ctx, id)
	if err != nil {
		return nil, err
	}
	portfolio.Sites = sites
	return &portfolio, nil
}

// ListPortfolios returns all portfolios ordered by name, each with its
// member sites loaded.
func (r *PortfolioRepository) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM portfolios
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range portfolios {
		sites, err := r.portfolioSites(ctx, portfolios[i].ID)
		if err != nil {
			return nil, err
		}
		portfolios[i].Sites = sites
	}
	return portfolios, nil
}

// UpdatePortfolio updates name and description, reporting whether the
// portfolio existed.
func (r *PortfolioRepository) UpdatePortfolio(ctx context.Context, portfolio *models.Portfolio) (bool, error) {
	if portfolio.Name == "" {
		return false, fmt.Errorf("portfolio name is required")
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE portfolios
		SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3`,
		portfolio.Name, portfolio.Description, portfolio.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("%w: portfolio %q", ErrDuplicate, portfolio.Name)
		}
		return false, fmt.Errorf("failed to update portfolio: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeletePortfolio removes a portfolio, reporting whether it existed. Site
// memberships cascade; the sites themselves are untouched.
func (r *PortfolioRepository) DeletePortfolio(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM portfolios WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete portfolio: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// AddSite adds a site to a portfolio. Returns ErrDuplicate when the site is
// already a member.
func (r *PortfolioRepository) AddSite(ctx context.Context, portfolioID, siteID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO portfolio_sites (portfolio_id, site_id)
		VALUES ($1, $2)`,
		portfolioID, siteID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: site %d already in portfolio %d", ErrDuplicate, siteID, portfolioID)
		}
		return fmt.Errorf("failed to add site to portfolio: %w", err)
	}
	return nil
}

// RemoveSite removes a site from a portfolio, reporting whether the
// membership existed.
func (r *PortfolioRepository) RemoveSite(ctx context.Context, portfolioID, siteID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM portfolio_sites
		WHERE portfolio_id = $1 AND site_id = $2`,
		portfolioID, siteID)
	if err != nil {
		return false, fmt.Errorf("failed to remove site from portfolio: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *PortfolioRepository) portfolioSites(ctx context.Context, portfolioID int64) ([]models.Site, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.site_type, s.latitude, s.longitude, s.capacity_mw,
		       s.created_at, s.updated_at
		FROM sites s
		JOIN portfolio_sites ps ON ps.site_id = s.id
		WHERE ps.portfolio_id = $1
		ORDER BY s.name`,
		portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio sites: %w", err)
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio site: %w", err)
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}
