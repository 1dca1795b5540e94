package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/gridcast/gridcast/internal/models"
	"github.com/shopspring/decimal"
)

type fakePortfolioStore struct {
	portfolios map[int64]*models.Portfolio
}

func (s *fakePortfolioStore) GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error) {
	return s.portfolios[id], nil
}

type fakeSiteStore struct {
	sites map[int64]*models.Site
}

func (s *fakeSiteStore) GetSite(ctx context.Context, id int64) (*models.Site, error) {
	return s.sites[id], nil
}

type fakeJobStore struct {
	jobs    map[string]*models.ForecastJob
	results map[string][]models.ForecastResult

	completeErr error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs:    make(map[string]*models.ForecastJob),
		results: make(map[string][]models.ForecastResult),
	}
}

func (s *fakeJobStore) CreateJob(ctx context.Context, job *models.ForecastJob) error {
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeJobStore) MarkJobRunning(ctx context.Context, jobID string) error {
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	job.Status = models.JobStatusRunning
	return nil
}

func (s *fakeJobStore) CompleteJob(ctx context.Context, jobID string, completedAt time.Time, results []models.ForecastResult) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &completedAt
	job.ErrorMessage = ""
	stored := make([]models.ForecastResult, len(results))
	copy(stored, results)
	sort.SliceStable(stored, func(i, j int) bool {
		if stored[i].SiteName != stored[j].SiteName {
			return stored[i].SiteName < stored[j].SiteName
		}
		return stored[i].ForecastAt.Before(stored[j].ForecastAt)
	})
	s.results[jobID] = stored
	return nil
}

func (s *fakeJobStore) FailJob(ctx context.Context, jobID string, completedAt time.Time, errorMessage string) error {
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	job.Status = models.JobStatusFailed
	job.CompletedAt = &completedAt
	job.ErrorMessage = errorMessage
	return nil
}

func (s *fakeJobStore) GetJob(ctx context.Context, jobID string) (*models.ForecastJob, error) {
	return s.jobs[jobID], nil
}

func (s *fakeJobStore) CountResults(ctx context.Context, jobID string) (int, error) {
	return len(s.results[jobID]), nil
}

func (s *fakeJobStore) ResultsForJob(ctx context.Context, jobID string) ([]models.ForecastResult, error) {
	return s.results[jobID], nil
}

func (s *fakeJobStore) ResultsForSite(ctx context.Context, siteID int64, jobID string) ([]models.ForecastResult, error) {
	var out []models.ForecastResult
	for _, r := range s.results[jobID] {
		if r.SiteID == siteID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeJobStore) LatestCompletedJob(ctx context.Context, portfolioID int64) (*models.ForecastJob, error) {
	var latest *models.ForecastJob
	for _, job := range s.jobs {
		if job.PortfolioID != portfolioID || job.Status != models.JobStatusCompleted {
			continue
		}
		if latest == nil || job.CompletedAt.After(*latest.CompletedAt) {
			latest = job
		}
	}
	return latest, nil
}

func (s *fakeJobStore) LatestCompletedJobForSite(ctx context.Context, siteID int64) (*models.ForecastJob, error) {
	var latest *models.ForecastJob
	for jobID, results := range s.results {
		job := s.jobs[jobID]
		if job == nil || job.Status != models.JobStatusCompleted {
			continue
		}
		for _, r := range results {
			if r.SiteID == siteID {
				if latest == nil || job.CompletedAt.After(*latest.CompletedAt) {
					latest = job
				}
				break
			}
		}
	}
	return latest, nil
}

func (s *fakeJobStore) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	for id, job := range s.jobs {
		if job.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			delete(s.results, id)
			deleted++
		}
	}
	return deleted, nil
}

type recordedJob struct {
	status      string
	resultCount int
}

type fakeRecorder struct {
	jobs []recordedJob
}

func (r *fakeRecorder) RecordJob(status string, duration time.Duration, resultCount int) {
	r.jobs = append(r.jobs, recordedJob{status: status, resultCount: resultCount})
}

type failingModel struct{}

func (failingModel) Predict(site *models.Site, horizonHours int) ([]PredictionPoint, error) {
	return nil, errors.New("model exploded")
}

func (failingModel) Name() string { return "failing" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sitePtr(id int64, name, siteType string, capacity float64) models.Site {
	cap := decimal.NewFromFloat(capacity)
	return models.Site{ID: id, Name: name, SiteType: siteType, Latitude: 50, Longitude: float64(id), CapacityMW: &cap}
}

type serviceFixture struct {
	service    *Service
	portfolios *fakePortfolioStore
	sites      *fakeSiteStore
	jobs       *fakeJobStore
	recorder   *fakeRecorder
	registry   *Registry
	clock      fixedClock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	siteA := sitePtr(1, "Alpha Solar", models.SiteTypeSolar, 10)
	siteB := sitePtr(2, "Beta Wind", models.SiteTypeWind, 5)

	portfolios := &fakePortfolioStore{portfolios: map[int64]*models.Portfolio{
		1: {ID: 1, Name: "North Fleet", Sites: []models.Site{siteA, siteB}},
		2: {ID: 2, Name: "Empty Fleet"},
	}}
	sites := &fakeSiteStore{sites: map[int64]*models.Site{1: &siteA, 2: &siteB}}
	jobs := newFakeJobStore()
	recorder := &fakeRecorder{}
	clock := fixedClock{now: time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)}

	registry := NewRegistry()
	seeded := NewSeededSyntheticModel(42)
	seeded.clock = clock
	for _, st := range registry.RegisteredTypes() {
		if err := registry.Register(st, seeded); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
	}
	if err := registry.SetDefault(seeded); err != nil {
		t.Fatalf("SetDefault returned error: %v", err)
	}

	return &serviceFixture{
		service:    NewService(portfolios, sites, jobs, registry, clock, recorder, testLogger(), 24),
		portfolios: portfolios,
		sites:      sites,
		jobs:       jobs,
		recorder:   recorder,
		registry:   registry,
		clock:      clock,
	}
}

func TestTriggerCompletesJobWithAllResults(t *testing.T) {
	f := newServiceFixture(t)

	job, err := f.service.Trigger(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("Trigger returned error: %v", err)
	}

	if job.Status != models.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", job.Status)
	}
	if job.CompletedAt == nil {
		t.Error("completed job missing completion timestamp")
	}
	if job.HorizonHours != 24 {
		t.Errorf("job horizon = %d, want default 24", job.HorizonHours)
	}

	results := f.jobs.results[job.ID]
	if len(results) != 2*24 {
		t.Errorf("stored %d results, want %d", len(results), 2*24)
	}

	if len(f.recorder.jobs) != 1 || f.recorder.jobs[0].status != "completed" || f.recorder.jobs[0].resultCount != 48 {
		t.Errorf("recorder observed %+v, want one completed job with 48 results", f.recorder.jobs)
	}
}

func TestTriggerHonorsExplicitHorizon(t *testing.T) {
	f := newServiceFixture(t)

	horizon := 6
	job, err := f.service.Trigger(context.Background(), 1, &horizon)
	if err != nil {
		t.Fatalf("Trigger returned error: %v", err)
	}
	if job.HorizonHours != 6 {
		t.Errorf("job horizon = %d, want 6", job.HorizonHours)
	}
	if got := len(f.jobs.results[job.ID]); got != 12 {
		t.Errorf("stored %d results, want 12", got)
	}
}

func TestTriggerRejectsNonPositiveHorizonBeforeCreatingJob(t *testing.T) {
	f := newServiceFixture(t)

	for _, horizon := range []int{0, -4} {
		h := horizon
		if _, err := f.service.Trigger(context.Background(), 1, &h); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Trigger(horizon %d) error = %v, want ErrInvalidInput", horizon, err)
		}
	}
	if len(f.jobs.jobs) != 0 {
		t.Errorf("invalid horizon created %d jobs, want 0", len(f.jobs.jobs))
	}
}

func TestTriggerUnknownPortfolio(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.service.Trigger(context.Background(), 404, nil); !errors.Is(err, ErrPortfolioNotFound) {
		t.Errorf("Trigger(unknown portfolio) error = %v, want ErrPortfolioNotFound", err)
	}
	if len(f.jobs.jobs) != 0 {
		t.Error("unknown portfolio created a job")
	}
}

func TestTriggerEmptyPortfolio(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.service.Trigger(context.Background(), 2, nil); !errors.Is(err, ErrEmptyPortfolio) {
		t.Errorf("Trigger(empty portfolio) error = %v, want ErrEmptyPortfolio", err)
	}
	if len(f.jobs.jobs) != 0 {
		t.Error("empty portfolio created a job")
	}
}

func TestTriggerModelFailureFailsJobWithoutResults(t *testing.T) {
	f := newServiceFixture(t)
	if err := f.registry.Register(models.SiteTypeWind, failingModel{}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, err := f.service.Trigger(context.Background(), 1, nil)

	var procErr *ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("Trigger error = %v, want *ProcessingError", err)
	}

	job := f.jobs.jobs[procErr.JobID]
	if job == nil {
		t.Fatal("failed job not persisted")
	}
	if job.Status != models.JobStatusFailed {
		t.Errorf("job status = %s, want failed", job.Status)
	}
	if job.ErrorMessage == "" {
		t.Error("failed job missing error message")
	}
	if len(f.jobs.results[procErr.JobID]) != 0 {
		t.Errorf("failed job retained %d results, want 0", len(f.jobs.results[procErr.JobID]))
	}
	if len(f.recorder.jobs) != 1 || f.recorder.jobs[0].status != "failed" {
		t.Errorf("recorder observed %+v, want one failed job", f.recorder.jobs)
	}
}

func TestTriggerPersistFailureFailsJob(t *testing.T) {
	f := newServiceFixture(t)
	f.jobs.completeErr = errors.New("disk full")

	_, err := f.service.Trigger(context.Background(), 1, nil)

	var procErr *ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("Trigger error = %v, want *ProcessingError", err)
	}
	if job := f.jobs.jobs[procErr.JobID]; job.Status != models.JobStatusFailed {
		t.Errorf("job status = %s, want failed", job.Status)
	}
}

func TestStatusReportsResultAccounting(t *testing.T) {
	f := newServiceFixture(t)

	job, err := f.service.Trigger(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("Trigger returned error: %v", err)
	}

	info, err := f.service.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}

	if !info.IsComplete || !info.IsSuccessful {
		t.Errorf("status flags = complete %v successful %v, want both true", info.IsComplete, info.IsSuccessful)
	}
	if info.ResultCount == nil || *info.ResultCount != 48 {
		t.Errorf("result count = %v, want 48", info.ResultCount)
	}
	if info.SiteCount == nil || *info.SiteCount != 2 {
		t.Errorf("site count = %v, want 2", info.SiteCount)
	}
	if info.ExpectedResults == nil || *info.ExpectedResults != 48 {
		t.Errorf("expected results = %v, want 48", info.ExpectedResults)
	}
	if info.ResultsComplete == nil || !*info.ResultsComplete {
		t.Errorf("results complete = %v, want true", info.ResultsComplete)
	}
}

func TestStatusFailedJobOmitsAccounting(t *testing.T) {
	f := newServiceFixture(t)
	if err := f.registry.Register(models.SiteTypeWind, failingModel{}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, err := f.service.Trigger(context.Background(), 1, nil)
	var procErr *ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("Trigger error = %v, want *ProcessingError", err)
	}

	info, err := f.service.Status(context.Background(), procErr.JobID)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if !info.IsComplete || info.IsSuccessful {
		t.Errorf("status flags = complete %v successful %v, want complete and unsuccessful", info.IsComplete, info.IsSuccessful)
	}
	if info.ResultCount != nil || info.ExpectedResults != nil {
		t.Error("failed job should not report result accounting")
	}
	if info.ErrorMessage == "" {
		t.Error("failed job status missing error message")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.service.Status(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Status(unknown) error = %v, want ErrJobNotFound", err)
	}
}

func TestCancelPendingJob(t *testing.T) {
	f := newServiceFixture(t)
	f.jobs.jobs["j1"] = &models.ForecastJob{ID: "j1", PortfolioID: 1, Status: models.JobStatusPending, CreatedAt: f.clock.Now()}

	cancelled, err := f.service.Cancel(context.Background(), "j1")
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if !cancelled {
		t.Fatal("Cancel returned false for pending job")
	}

	job := f.jobs.jobs["j1"]
	if job.Status != models.JobStatusFailed {
		t.Errorf("cancelled job status = %s, want failed", job.Status)
	}
	if job.ErrorMessage != CancellationMessage {
		t.Errorf("cancelled job message = %q, want %q", job.ErrorMessage, CancellationMessage)
	}
}

func TestCancelTerminalJobIsNoOp(t *testing.T) {
	f := newServiceFixture(t)

	job, err := f.service.Trigger(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("Trigger returned error: %v", err)
	}

	cancelled, err := f.service.Cancel(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if cancelled {
		t.Error("Cancel returned true for completed job")
	}
	if f.jobs.jobs[job.ID].Status != models.JobStatusCompleted {
		t.Error("cancelling a completed job changed its status")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	f := newServiceFixture(t)

	if _, err := f.service.Cancel(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Cancel(unknown) error = %v, want ErrJobNotFound", err)
	}
}

func TestCleanupDeletesOnlyOldTerminalJobs(t *testing.T) {
	f := newServiceFixture(t)

	old := f.clock.Now().Add(-40 * 24 * time.Hour)
	recent := f.clock.Now().Add(-time.Hour)
	f.jobs.jobs["old-done"] = &models.ForecastJob{ID: "old-done", Status: models.JobStatusCompleted, CompletedAt: &old}
	f.jobs.jobs["old-failed"] = &models.ForecastJob{ID: "old-failed", Status: models.JobStatusFailed, CompletedAt: &old}
	f.jobs.jobs["recent"] = &models.ForecastJob{ID: "recent", Status: models.JobStatusCompleted, CompletedAt: &recent}
	f.jobs.jobs["stuck"] = &models.ForecastJob{ID: "stuck", Status: models.JobStatusRunning}

	deleted, err := f.service.Cleanup(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Cleanup deleted %d jobs, want 2", deleted)
	}
	if _, ok := f.jobs.jobs["recent"]; !ok {
		t.Error("cleanup removed a job inside the retention window")
	}
	if _, ok := f.jobs.jobs["stuck"]; !ok {
		t.Error("cleanup removed a non-terminal job")
	}
}
