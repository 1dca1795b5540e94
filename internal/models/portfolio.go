package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is a named collection of sites. Sites are loaded ordered by name.
type Portfolio struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Sites       []Site    `json:"sites,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SiteCount returns the number of member sites.
func (p *Portfolio) SiteCount() int {
	return len(p.Sites)
}

// TotalCapacity sums the nameplate capacity of all member sites, treating
// sites without a capacity as zero.
func (p *Portfolio) TotalCapacity() decimal.Decimal {
	total := decimal.Zero
	for i := range p.Sites {
		if p.Sites[i].CapacityMW != nil {
			total = total.Add(*p.Sites[i].CapacityMW)
		}
	}
	return total
}

// PortfolioSite records a site's membership in a portfolio.
type PortfolioSite struct {
	PortfolioID int64     `json:"portfolio_id"`
	SiteID      int64     `json:"site_id"`
	AddedAt     time.Time `json:"added_at"`
}
