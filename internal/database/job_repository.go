package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gridcast/gridcast/internal/models"
	"github.com/shopspring/decimal"
)

// JobRepository handles database operations for forecast jobs and their
// results.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateJob inserts a new forecast job in its initial state.
func (r *JobRepository) CreateJob(ctx context.Context, job *models.ForecastJob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO forecast_jobs (id, portfolio_id, status, horizon_hours, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.PortfolioID, job.Status, job.HorizonHours, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create forecast job: %w", err)
	}
	return nil
}

// MarkJobRunning transitions a job to running.
func (r *JobRepository) MarkJobRunning(ctx context.Context, jobID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE forecast_jobs
		SET status = $1
		WHERE id = $2`,
		models.JobStatusRunning, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("forecast job %s not found", jobID)
	}
	return nil
}

// CompleteJob writes all result rows and the completed transition in a
// single transaction, so a job is never observably completed with a partial
// result set.
func (r *JobRepository) CompleteJob(ctx context.Context, jobID string, completedAt time.Time, results []models.ForecastResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO forecast_results
			(job_id, site_id, forecast_at, predicted_mwh, confidence_lower, confidence_upper)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i := range results {
		res := &results[i]
		_, err := stmt.ExecContext(ctx,
			res.JobID, res.SiteID, res.ForecastAt,
			res.PredictedMWh, nullDecimal(res.Lower), nullDecimal(res.Upper))
		if err != nil {
			return fmt.Errorf("failed to insert forecast result: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE forecast_jobs
		SET status = $1, completed_at = $2, error_message = NULL
		WHERE id = $3`,
		models.JobStatusCompleted, completedAt, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job completion: %w", err)
	}
	return nil
}

// FailJob transitions a job to failed with the given error message.
func (r *JobRepository) FailJob(ctx context.Context, jobID string, completedAt time.Time, errorMessage string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE forecast_jobs
		SET status = $1, completed_at = $2, error_message = $3
		WHERE id = $4`,
		models.JobStatusFailed, completedAt, errorMessage, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID with its portfolio name. Returns nil without
// error when not found.
func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*models.ForecastJob, error) {
	query := `
		SELECT j.id, j.portfolio_id, p.name, j.status, j.horizon_hours,
		       j.created_at, j.completed_at, j.error_message
		FROM forecast_jobs j
		JOIN portfolios p ON p.id = j.portfolio_id
		WHERE j.id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, jobID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get forecast job: %w", err)
	}
	return job, nil
}

// CountResults returns the number of result rows stored for a job.
func (r *JobRepository) CountResults(ctx context.Context, jobID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM forecast_results WHERE job_id = $1", jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count forecast results: %w", err)
	}
	return count, nil
}

// ResultsForJob returns all results for a job ordered by site name then
// timestamp.
func (r *JobRepository) ResultsForJob(ctx context.Context, jobID string) ([]models.ForecastResult, error) {
	query := `
		SELECT r.id, r.job_id, r.site_id, s.name, s.site_type,
		       r.forecast_at, r.predicted_mwh, r.confidence_lower, r.confidence_upper, r.created_at
		FROM forecast_results r
		JOIN sites s ON s.id = r.site_id
		WHERE r.job_id = $1
		ORDER BY s.name, r.forecast_at`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast results: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// ResultsForSite returns one site's results within a job, ordered by
// timestamp.
func (r *JobRepository) ResultsForSite(ctx context.Context, siteID int64, jobID string) ([]models.ForecastResult, error) {
	query := `
		SELECT r.id, r.job_id, r.site_id, s.name, s.site_type,
		       r.forecast_at, r.predicted_mwh, r.confidence_lower, r.confidence_upper, r.created_at
		FROM forecast_results r
		JOIN sites s ON s.id = r.site_id
		WHERE r.site_id = $1 AND r.job_id = $2
		ORDER BY r.forecast_at`

	rows, err := r.db.QueryContext(ctx, query, siteID, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query site forecast results: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// LatestCompletedJob returns the most recently completed job for a
// portfolio, or nil when none exists.
func (r *JobRepository) LatestCompletedJob(ctx context.Context, portfolioID int64) (*models.ForecastJob, error) {
	query := `
		SELECT j.id, j.portfolio_id, p.name, j.status, j.horizon_hours,
		       j.created_at, j.completed_at, j.error_message
		FROM forecast_jobs j
		JOIN portfolios p ON p.id = j.portfolio_id
		WHERE j.portfolio_id = $1 AND j.status = $2
		ORDER BY j.completed_at DESC
		LIMIT 1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, portfolioID, models.JobStatusCompleted))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest completed job: %w", err)
	}
	return job, nil
}

// LatestCompletedJobForSite returns the most recently completed job that
// produced results for the site, across all portfolios it belongs to.
func (r *JobRepository) LatestCompletedJobForSite(ctx context.Context, siteID int64) (*models.ForecastJob, error) {
	query := `
		SELECT j.id, j.portfolio_id, p.name, j.status, j.horizon_hours,
		       j.created_at, j.completed_at, j.error_message
		FROM forecast_jobs j
		JOIN portfolios p ON p.id = j.portfolio_id
		WHERE j.status = $1
		  AND EXISTS (
			SELECT 1 FROM forecast_results r
			WHERE r.job_id = j.id AND r.site_id = $2
		  )
		ORDER BY j.completed_at DESC
		LIMIT 1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, models.JobStatusCompleted, siteID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest completed job for site: %w", err)
	}
	return job, nil
}

// DeleteTerminalJobsBefore removes completed and failed jobs whose
// completion timestamp is older than the cutoff, along with their results,
// and returns the number of jobs deleted. Pending and running jobs are never
// touched.
func (r *JobRepository) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM forecast_results
		WHERE job_id IN (
			SELECT id FROM forecast_jobs
			WHERE status IN ($1, $2) AND completed_at < $3
		)`,
		models.JobStatusCompleted, models.JobStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old forecast results: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM forecast_jobs
		WHERE status IN ($1, $2) AND completed_at < $3`,
		models.JobStatusCompleted, models.JobStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old forecast jobs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup: %w", err)
	}
	return deleted, nil
}

func scanJob(row rowScanner) (*models.ForecastJob, error) {
	var job models.ForecastJob
	var completedAt sql.NullTime
	var errorMessage sql.NullString

	err := row.Scan(&job.ID, &job.PortfolioID, &job.PortfolioName, &job.Status,
		&job.HorizonHours, &job.CreatedAt, &completedAt, &errorMessage)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	if errorMessage.Valid {
		job.ErrorMessage = errorMessage.String
	}
	return &job, nil
}

func scanResults(rows *sql.Rows) ([]models.ForecastResult, error) {
	var results []models.ForecastResult
	for rows.Next() {
		var res models.ForecastResult
		var lower, upper decimal.NullDecimal

		err := rows.Scan(&res.ID, &res.JobID, &res.SiteID, &res.SiteName, &res.SiteType,
			&res.ForecastAt, &res.PredictedMWh, &lower, &upper, &res.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan forecast result: %w", err)
		}
		if lower.Valid {
			res.Lower = &lower.Decimal
		}
		if upper.Valid {
			res.Upper = &upper.Decimal
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
