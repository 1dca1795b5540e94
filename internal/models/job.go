package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JobStatus describes the lifecycle state of a forecast job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ForecastJob represents one forecast run for one portfolio. The ID is an
// opaque UUID so job identifiers leak nothing about creation order.
type ForecastJob struct {
	ID            string     `json:"id"`
	PortfolioID   int64      `json:"portfolio_id"`
	PortfolioName string     `json:"portfolio_name,omitempty"`
	Status        JobStatus  `json:"status"`
	HorizonHours  int        `json:"forecast_horizon"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"` // set only on completed/failed
	ErrorMessage  string     `json:"error_message,omitempty"`
}

// IsTerminal reports whether the job has reached a final state.
func (j *ForecastJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// IsSuccessful reports whether the job completed without error.
func (j *ForecastJob) IsSuccessful() bool {
	return j.Status == JobStatusCompleted
}

// ForecastResult is one prediction for one (job, site, timestamp) triple.
// Generation values carry three decimal places.
type ForecastResult struct {
	ID           int64            `json:"id"`
	JobID        string           `json:"job_id"`
	SiteID       int64            `json:"site_id"`
	SiteName     string           `json:"site_name,omitempty"`
	SiteType     string           `json:"site_type,omitempty"`
	ForecastAt   time.Time        `json:"forecast_at"`
	PredictedMWh decimal.Decimal  `json:"predicted_generation_mwh"`
	Lower        *decimal.Decimal `json:"confidence_interval_lower,omitempty"`
	Upper        *decimal.Decimal `json:"confidence_interval_upper,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Validate enforces the confidence interval invariants.
func (r *ForecastResult) Validate() error {
	if r.PredictedMWh.IsNegative() {
		return fmt.Errorf("predicted generation must be non-negative")
	}
	if r.Lower != nil && r.Lower.IsNegative() {
		return fmt.Errorf("confidence interval lower bound must be non-negative")
	}
	if r.Lower != nil && r.Upper != nil {
		if r.Lower.GreaterThan(*r.Upper) {
			return fmt.Errorf("confidence interval lower bound exceeds upper bound")
		}
		if r.PredictedMWh.LessThan(*r.Lower) || r.PredictedMWh.GreaterThan(*r.Upper) {
			return fmt.Errorf("predicted value outside confidence interval")
		}
	}
	return nil
}
