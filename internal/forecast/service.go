package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gridcast/gridcast/internal/models"
)

// CancellationMessage is recorded on jobs failed via Cancel.
const CancellationMessage = "job cancelled by user"

// DefaultHorizonHours is used when the service is constructed without an
// explicit default.
const DefaultHorizonHours = 24

// PortfolioStore loads portfolios with their member sites (ordered by site
// name). A nil portfolio with nil error means "not found".
type PortfolioStore interface {
	GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error)
}

// SiteStore loads individual sites. A nil site with nil error means "not
// found".
type SiteStore interface {
	GetSite(ctx context.Context, id int64) (*models.Site, error)
}

// JobStore persists forecast jobs and their results. CompleteJob must write
// all result rows and the completed transition in a single transaction so a
// job is never observably completed with a partial result set.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.ForecastJob) error
	MarkJobRunning(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, jobID string, completedAt time.Time, results []models.ForecastResult) error
	FailJob(ctx context.Context, jobID string, completedAt time.Time, errorMessage string) error
	GetJob(ctx context.Context, jobID string) (*models.ForecastJob, error)
	CountResults(ctx context.Context, jobID string) (int, error)
	ResultsForJob(ctx context.Context, jobID string) ([]models.ForecastResult, error)
	ResultsForSite(ctx context.Context, siteID int64, jobID string) ([]models.ForecastResult, error)
	LatestCompletedJob(ctx context.Context, portfolioID int64) (*models.ForecastJob, error)
	LatestCompletedJobForSite(ctx context.Context, siteID int64) (*models.ForecastJob, error)
	DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobRecorder receives job outcome observations for metrics.
type JobRecorder interface {
	RecordJob(status string, duration time.Duration, resultCount int)
}

// Service orchestrates portfolio forecast jobs: it validates the portfolio,
// creates the job record, runs the per-site models, persists results and
// drives the job state machine. Trigger executes synchronously; there is no
// background queue.
type Service struct {
	portfolios     PortfolioStore
	sites          SiteStore
	jobs           JobStore
	registry       *Registry
	clock          Clock
	recorder       JobRecorder
	logger         *slog.Logger
	defaultHorizon int
}

// NewService creates a forecast service. registry, clock and recorder may be
// nil, in which case the default registry, the system clock and no metrics
// are used.
func NewService(portfolios PortfolioStore, sites SiteStore, jobs JobStore, registry *Registry, clock Clock, recorder JobRecorder, logger *slog.Logger, defaultHorizon int) *Service {
	if registry == nil {
		registry = DefaultRegistry
	}
	if clock == nil {
		clock = SystemClock
	}
	if defaultHorizon <= 0 {
		defaultHorizon = DefaultHorizonHours
	}
	return &Service{
		portfolios:     portfolios,
		sites:          sites,
		jobs:           jobs,
		registry:       registry,
		clock:          clock,
		recorder:       recorder,
		logger:         logger,
		defaultHorizon: defaultHorizon,
	}
}

// Trigger runs a forecast for every site in the portfolio. A nil horizon
// selects the service default; an explicit non-positive horizon is rejected
// before any job row is created. The call blocks until the job is terminal:
// on success the completed job is returned, on processing failure the job is
// persisted as failed and a *ProcessingError is returned.
func (s *Service) Trigger(ctx context.Context, portfolioID int64, horizon *int) (*models.ForecastJob, error) {
	h := s.defaultHorizon
	if horizon != nil {
		if *horizon <= 0 {
			return nil, fmt.Errorf("%w: forecast horizon must be positive, got %d", ErrInvalidInput, *horizon)
		}
		h = *horizon
	}

	portfolio, err := s.portfolios.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("load portfolio %d: %w", portfolioID, err)
	}
	if portfolio == nil {
		return nil, fmt.Errorf("%w: id %d", ErrPortfolioNotFound, portfolioID)
	}
	if portfolio.SiteCount() == 0 {
		return nil, fmt.Errorf("%w: portfolio %q (id %d)", ErrEmptyPortfolio, portfolio.Name, portfolioID)
	}

	job := &models.ForecastJob{
		ID:            uuid.New().String(),
		PortfolioID:   portfolio.ID,
		PortfolioName: portfolio.Name,
		Status:        models.JobStatusPending,
		HorizonHours:  h,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create forecast job: %w", err)
	}

	s.logger.Info("created forecast job",
		"job_id", job.ID,
		"portfolio", portfolio.Name,
		"sites", portfolio.SiteCount(),
		"horizon_hours", h)

	if err := s.process(ctx, job, portfolio, h); err != nil {
		return nil, err
	}
	return job, nil
}

// process drives a pending job to a terminal state. All results are written
// together with the completed transition; any per-site failure aborts the
// whole attempt, leaving the job failed with zero retained results.
func (s *Service) process(ctx context.Context, job *models.ForecastJob, portfolio *models.Portfolio, horizon int) error {
	started := s.clock.Now()

	if err := s.jobs.MarkJobRunning(ctx, job.ID); err != nil {
		return s.failJob(ctx, job, started, fmt.Errorf("mark job running: %w", err))
	}
	job.Status = models.JobStatusRunning

	results := make([]models.ForecastResult, 0, portfolio.SiteCount()*horizon)
	for i := range portfolio.Sites {
		site := &portfolio.Sites[i]
		model := s.registry.Get(site.SiteType)

		points, err := model.Predict(site, horizon)
		if err != nil {
			s.logger.Error("model prediction failed",
				"job_id", job.ID,
				"site", site.Name,
				"model", model.Name(),
				"error", err)
			return s.failJob(ctx, job, started, fmt.Errorf("site %q: %w", site.Name, err))
		}

		for _, p := range points {
			results = append(results, models.ForecastResult{
				JobID:        job.ID,
				SiteID:       site.ID,
				SiteName:     site.Name,
				SiteType:     site.SiteType,
				ForecastAt:   p.Timestamp,
				PredictedMWh: p.PredictedMWh,
				Lower:        p.Lower,
				Upper:        p.Upper,
			})
		}

		s.logger.Debug("generated site predictions",
			"job_id", job.ID,
			"site", site.Name,
			"points", len(points))
	}

	completedAt := s.clock.Now()
	if err := s.jobs.CompleteJob(ctx, job.ID, completedAt, results); err != nil {
		return s.failJob(ctx, job, started, fmt.Errorf("persist results: %w", err))
	}

	job.Status = models.JobStatusCompleted
	job.CompletedAt = &completedAt
	job.ErrorMessage = ""

	if s.recorder != nil {
		s.recorder.RecordJob(string(models.JobStatusCompleted), completedAt.Sub(started), len(results))
	}
	s.logger.Info("completed forecast job",
		"job_id", job.ID,
		"results", len(results),
		"sites", portfolio.SiteCount())
	return nil
}

// failJob records the failure on the job row and returns the wrapped
// processing error.
func (s *Service) failJob(ctx context.Context, job *models.ForecastJob, started time.Time, cause error) error {
	failedAt := s.clock.Now()
	if err := s.jobs.FailJob(ctx, job.ID, failedAt, cause.Error()); err != nil {
		s.logger.Error("failed to record job failure", "job_id", job.ID, "error", err)
	}

	job.Status = models.JobStatusFailed
	job.CompletedAt = &failedAt
	job.ErrorMessage = cause.Error()

	if s.recorder != nil {
		s.recorder.RecordJob(string(models.JobStatusFailed), failedAt.Sub(started), 0)
	}
	s.logger.Error("forecast job failed", "job_id", job.ID, "error", cause)
	return &ProcessingError{JobID: job.ID, Err: cause}
}

// StatusInfo is the metadata returned for a job. The result accounting
// fields are populated only for successfully completed jobs.
type StatusInfo struct {
	JobID           string     `json:"job_id"`
	PortfolioID     int64      `json:"portfolio_id"`
	PortfolioName   string     `json:"portfolio_name"`
	Status          string     `json:"status"`
	HorizonHours    int        `json:"forecast_horizon"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	IsComplete      bool       `json:"is_complete"`
	IsSuccessful    bool       `json:"is_successful"`
	ResultCount     *int       `json:"result_count,omitempty"`
	SiteCount       *int       `json:"site_count,omitempty"`
	ExpectedResults *int       `json:"expected_results,omitempty"`
	ResultsComplete *bool      `json:"results_complete,omitempty"`
}

// Status returns job metadata, including result accounting when the job
// completed successfully.
func (s *Service) Status(ctx context.Context, jobID string) (*StatusInfo, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: id %s", ErrJobNotFound, jobID)
	}

	info := &StatusInfo{
		JobID:         job.ID,
		PortfolioID:   job.PortfolioID,
		PortfolioName: job.PortfolioName,
		Status:        string(job.Status),
		HorizonHours:  job.HorizonHours,
		CreatedAt:     job.CreatedAt,
		CompletedAt:   job.CompletedAt,
		ErrorMessage:  job.ErrorMessage,
		IsComplete:    job.IsTerminal(),
		IsSuccessful:  job.IsSuccessful(),
	}

	if !job.IsSuccessful() {
		return info, nil
	}

	resultCount, err := s.jobs.CountResults(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("count results for job %s: %w", jobID, err)
	}

	siteCount := 0
	if portfolio, err := s.portfolios.GetPortfolio(ctx, job.PortfolioID); err != nil {
		return nil, fmt.Errorf("load portfolio %d: %w", job.PortfolioID, err)
	} else if portfolio != nil {
		siteCount = portfolio.SiteCount()
	}

	expected := siteCount * job.HorizonHours
	complete := resultCount >= expected

	info.ResultCount = &resultCount
	info.SiteCount = &siteCount
	info.ExpectedResults = &expected
	info.ResultsComplete = &complete
	return info, nil
}

// Cancel flips a pending or running job to failed with a fixed cancellation
// message. Cancelling a terminal job is a no-op returning false.
func (s *Service) Cancel(ctx context.Context, jobID string) (bool, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job == nil {
		return false, fmt.Errorf("%w: id %s", ErrJobNotFound, jobID)
	}

	if job.IsTerminal() {
		s.logger.Warn("cannot cancel terminal job", "job_id", jobID, "status", job.Status)
		return false, nil
	}

	if err := s.jobs.FailJob(ctx, jobID, s.clock.Now(), CancellationMessage); err != nil {
		return false, fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	s.logger.Info("cancelled forecast job", "job_id", jobID)
	return true, nil
}

// Cleanup deletes terminal jobs whose completion timestamp is older than the
// retention window, cascading their results, and returns the count removed.
// Non-terminal jobs are never touched.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.clock.Now().Add(-retention)

	deleted, err := s.jobs.DeleteTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("cleaned up old forecast jobs", "count", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
