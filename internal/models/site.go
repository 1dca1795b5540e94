package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Known site types. Unknown types are still forecastable through the
// registry's default model.
const (
	SiteTypeSolar = "solar"
	SiteTypeWind  = "wind"
	SiteTypeHydro = "hydro"
)

// ValidSiteTypes returns the site types accepted on create/update.
func ValidSiteTypes() []string {
	return []string{SiteTypeSolar, SiteTypeWind, SiteTypeHydro}
}

// IsValidSiteType reports whether t is one of the known site types.
func IsValidSiteType(t string) bool {
	switch strings.ToLower(t) {
	case SiteTypeSolar, SiteTypeWind, SiteTypeHydro:
		return true
	}
	return false
}

// Site represents a renewable energy generation site.
type Site struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	SiteType   string           `json:"site_type"`
	Latitude   float64          `json:"latitude"`
	Longitude  float64          `json:"longitude"`
	CapacityMW *decimal.Decimal `json:"capacity_mw,omitempty"` // nameplate capacity, nil when unknown
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Validate checks the site's attributes against their allowed ranges.
func (s *Site) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("site name is required")
	}
	if !IsValidSiteType(s.SiteType) {
		return fmt.Errorf("invalid site type %q: must be one of %s", s.SiteType, strings.Join(ValidSiteTypes(), ", "))
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", s.Longitude)
	}
	if s.CapacityMW != nil && s.CapacityMW.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("capacity_mw must be positive")
	}
	return nil
}
