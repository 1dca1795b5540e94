package forecast

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gridcast/gridcast/internal/models"
	"github.com/shopspring/decimal"
)

// SeriesPoint is one hourly prediction in an external-facing series. Values
// are floats here and only here: all internal math stays in decimal.
type SeriesPoint struct {
	Timestamp    time.Time `json:"datetime"`
	PredictedMWh float64   `json:"predicted_generation_mwh"`
	Lower        float64   `json:"confidence_interval_lower"`
	Upper        float64   `json:"confidence_interval_upper"`
}

// SiteSeries is the forecast series for one site within a job.
type SiteSeries struct {
	SiteID     int64         `json:"site_id"`
	SiteName   string        `json:"site_name"`
	SiteType   string        `json:"site_type"`
	CapacityMW float64       `json:"capacity_mw"`
	Forecasts  []SeriesPoint `json:"forecasts"`
}

// TotalPoint is the portfolio-level sum across all sites at one timestamp.
type TotalPoint struct {
	Timestamp    time.Time `json:"datetime"`
	PredictedMWh float64   `json:"total_predicted_mwh"`
	Lower        float64   `json:"total_confidence_lower"`
	Upper        float64   `json:"total_confidence_upper"`
}

// PortfolioResults holds per-site series plus the aggregated portfolio time
// series for one job.
type PortfolioResults struct {
	JobID           string       `json:"job_id"`
	PortfolioID     int64        `json:"portfolio_id"`
	PortfolioName   string       `json:"portfolio_name"`
	GeneratedAt     *time.Time   `json:"forecast_generated_at,omitempty"`
	SiteCount       int          `json:"site_count"`
	TotalCapacityMW float64      `json:"total_capacity_mw"`
	SiteForecasts   []SiteSeries `json:"site_forecasts"`
	PortfolioTotals []TotalPoint `json:"portfolio_totals"`
}

// SiteResults holds the forecast series for one site from one job.
type SiteResults struct {
	SiteID        int64         `json:"site_id"`
	SiteName      string        `json:"site_name"`
	SiteType      string        `json:"site_type"`
	CapacityMW    float64       `json:"capacity_mw"`
	JobID         string        `json:"job_id"`
	ForecastCount int           `json:"forecast_count"`
	Forecasts     []SeriesPoint `json:"forecasts"`
}

// PortfolioForecastResults returns per-site series and portfolio totals for
// a job. An empty jobID selects the portfolio's most recently completed job.
// Time buckets are keyed by exact timestamp equality; at each timestamp the
// portfolio totals are the sums of the per-site predicted values and of each
// confidence bound.
func (s *Service) PortfolioForecastResults(ctx context.Context, portfolioID int64, jobID string) (*PortfolioResults, error) {
	portfolio, err := s.portfolios.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("load portfolio %d: %w", portfolioID, err)
	}
	if portfolio == nil {
		return nil, fmt.Errorf("%w: id %d", ErrPortfolioNotFound, portfolioID)
	}

	var job *models.ForecastJob
	if jobID != "" {
		job, err = s.jobs.GetJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("load job %s: %w", jobID, err)
		}
		if job == nil || job.PortfolioID != portfolioID {
			return nil, fmt.Errorf("%w: id %s for portfolio %d", ErrJobNotFound, jobID, portfolioID)
		}
	} else {
		job, err = s.jobs.LatestCompletedJob(ctx, portfolioID)
		if err != nil {
			return nil, fmt.Errorf("find latest completed job: %w", err)
		}
		if job == nil {
			return nil, fmt.Errorf("%w: no completed forecast jobs for portfolio %d", ErrJobNotFound, portfolioID)
		}
	}

	results, err := s.jobs.ResultsForJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("load results for job %s: %w", job.ID, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no forecast results for job %s", ErrJobNotFound, job.ID)
	}

	siteSeries, totals := aggregateResults(portfolio, results)

	capacity, _ := portfolio.TotalCapacity().Float64()
	return &PortfolioResults{
		JobID:           job.ID,
		PortfolioID:     portfolio.ID,
		PortfolioName:   portfolio.Name,
		GeneratedAt:     job.CompletedAt,
		SiteCount:       len(siteSeries),
		TotalCapacityMW: capacity,
		SiteForecasts:   siteSeries,
		PortfolioTotals: totals,
	}, nil
}

// SiteForecastResults returns the series for one site. An empty jobID
// selects the latest completed job that included the site through any
// portfolio membership.
func (s *Service) SiteForecastResults(ctx context.Context, siteID int64, jobID string) (*SiteResults, error) {
	site, err := s.sites.GetSite(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("load site %d: %w", siteID, err)
	}
	if site == nil {
		return nil, fmt.Errorf("%w: id %d", ErrSiteNotFound, siteID)
	}

	if jobID == "" {
		job, err := s.jobs.LatestCompletedJobForSite(ctx, siteID)
		if err != nil {
			return nil, fmt.Errorf("find latest completed job for site %d: %w", siteID, err)
		}
		if job == nil {
			return nil, fmt.Errorf("%w: no completed forecast jobs for site %d", ErrJobNotFound, siteID)
		}
		jobID = job.ID
	}

	results, err := s.jobs.ResultsForSite(ctx, siteID, jobID)
	if err != nil {
		return nil, fmt.Errorf("load results for site %d: %w", siteID, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no forecast results for site %d", ErrJobNotFound, siteID)
	}

	forecasts := make([]SeriesPoint, 0, len(results))
	for i := range results {
		forecasts = append(forecasts, toSeriesPoint(&results[i]))
	}

	capacity := 0.0
	if site.CapacityMW != nil {
		capacity, _ = site.CapacityMW.Float64()
	}
	return &SiteResults{
		SiteID:        site.ID,
		SiteName:      site.Name,
		SiteType:      site.SiteType,
		CapacityMW:    capacity,
		JobID:         jobID,
		ForecastCount: len(forecasts),
		Forecasts:     forecasts,
	}, nil
}

type runningTotal struct {
	timestamp time.Time
	predicted decimal.Decimal
	lower     decimal.Decimal
	upper     decimal.Decimal
}

// aggregateResults groups results into per-site series (results arrive
// ordered by site name then timestamp) and sums predicted values and bounds
// per timestamp. Missing bounds contribute zero.
func aggregateResults(portfolio *models.Portfolio, results []models.ForecastResult) ([]SiteSeries, []TotalPoint) {
	capacityBySite := make(map[int64]float64, len(portfolio.Sites))
	for i := range portfolio.Sites {
		if portfolio.Sites[i].CapacityMW != nil {
			capacityBySite[portfolio.Sites[i].ID], _ = portfolio.Sites[i].CapacityMW.Float64()
		}
	}

	var series []SiteSeries
	totals := make(map[int64]*runningTotal)

	for i := range results {
		r := &results[i]

		if len(series) == 0 || series[len(series)-1].SiteID != r.SiteID {
			series = append(series, SiteSeries{
				SiteID:     r.SiteID,
				SiteName:   r.SiteName,
				SiteType:   r.SiteType,
				CapacityMW: capacityBySite[r.SiteID],
			})
		}
		current := &series[len(series)-1]
		current.Forecasts = append(current.Forecasts, toSeriesPoint(r))

		key := r.ForecastAt.UnixNano()
		total, ok := totals[key]
		if !ok {
			total = &runningTotal{timestamp: r.ForecastAt}
			totals[key] = total
		}
		total.predicted = total.predicted.Add(r.PredictedMWh)
		if r.Lower != nil {
			total.lower = total.lower.Add(*r.Lower)
		}
		if r.Upper != nil {
			total.upper = total.upper.Add(*r.Upper)
		}
	}

	points := make([]TotalPoint, 0, len(totals))
	for _, t := range totals {
		predicted, _ := t.predicted.Float64()
		lower, _ := t.lower.Float64()
		upper, _ := t.upper.Float64()
		points = append(points, TotalPoint{
			Timestamp:    t.timestamp,
			PredictedMWh: predicted,
			Lower:        lower,
			Upper:        upper,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })

	return series, points
}

func toSeriesPoint(r *models.ForecastResult) SeriesPoint {
	predicted, _ := r.PredictedMWh.Float64()
	lower, upper := 0.0, 0.0
	if r.Lower != nil {
		lower, _ = r.Lower.Float64()
	}
	if r.Upper != nil {
		upper, _ = r.Upper.Float64()
	}
	return SeriesPoint{
		Timestamp:    r.ForecastAt,
		PredictedMWh: predicted,
		Lower:        lower,
		Upper:        upper,
	}
}
