package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gridcast/gridcast/internal/forecast"
	"github.com/gridcast/gridcast/internal/models"
	"log/slog"
)

// ForecastService is the orchestration surface the forecast handlers need.
type ForecastService interface {
	Trigger(ctx context.Context, portfolioID int64, horizon *int) (*models.ForecastJob, error)
	Status(ctx context.Context, jobID string) (*forecast.StatusInfo, error)
	Cancel(ctx context.Context, jobID string) (bool, error)
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
	PortfolioForecastResults(ctx context.Context, portfolioID int64, jobID string) (*forecast.PortfolioResults, error)
	SiteForecastResults(ctx context.Context, siteID int64, jobID string) (*forecast.SiteResults, error)
}

// ForecastHandler handles forecast job requests
type ForecastHandler struct {
	service          ForecastService
	defaultRetention time.Duration
	logger           *slog.Logger
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(service ForecastService, defaultRetention time.Duration, logger *slog.Logger) *ForecastHandler {
	return &ForecastHandler{
		service:          service,
		defaultRetention: defaultRetention,
		logger:           logger,
	}
}

// TriggerRequest is the optional request body for triggering a forecast.
type TriggerRequest struct {
	HorizonHours *int `json:"forecast_horizon"`
}

// TriggerForecast handles POST /api/forecasts/portfolio/:id/trigger. The
// forecast runs synchronously; the response carries the terminal job.
func (h *ForecastHandler) TriggerForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	portfolioID, err := pathID(r.URL.Path, "/api/forecasts/portfolio/")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	var req TriggerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	job, err := h.service.Trigger(r.Context(), portfolioID, req.HorizonHours)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, job)
}

// JobStatus handles GET /api/forecasts/jobs/:id/status
func (h *ForecastHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := jobIDFromPath(r.URL.Path, "/status")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	info, err := h.service.Status(r.Context(), jobID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// CancelJob handles POST /api/forecasts/jobs/:id/cancel
func (h *ForecastHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := jobIDFromPath(r.URL.Path, "/cancel")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	cancelled, err := h.service.Cancel(r.Context(), jobID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !cancelled {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":    jobID,
		"cancelled": true,
	})
}

// PortfolioResults handles GET /api/forecasts/portfolio/:id/results. An
// optional job_id query parameter selects a specific job; the default is the
// portfolio's latest completed job.
func (h *ForecastHandler) PortfolioResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	portfolioID, err := pathID(r.URL.Path, "/api/forecasts/portfolio/")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	results, err := h.service.PortfolioForecastResults(r.Context(), portfolioID, r.URL.Query().Get("job_id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// SiteResults handles GET /api/forecasts/site/:id/results
func (h *ForecastHandler) SiteResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	siteID, err := pathID(r.URL.Path, "/api/forecasts/site/")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid site id")
		return
	}

	results, err := h.service.SiteForecastResults(r.Context(), siteID, r.URL.Query().Get("job_id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// CleanupRequest is the optional request body for the cleanup endpoint.
type CleanupRequest struct {
	RetentionDays *int `json:"retention_days"`
}

// Cleanup handles POST /api/forecasts/cleanup
func (h *ForecastHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	retention := h.defaultRetention
	var req CleanupRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.RetentionDays != nil {
		if *req.RetentionDays <= 0 {
			respondError(w, http.StatusBadRequest, "retention_days must be positive")
			return
		}
		retention = time.Duration(*req.RetentionDays) * 24 * time.Hour
	}

	deleted, err := h.service.Cleanup(r.Context(), retention)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted_jobs": deleted})
}

// jobIDFromPath extracts the job ID between the jobs prefix and the action
// suffix, e.g. /api/forecasts/jobs/:id/status.
func jobIDFromPath(path, suffix string) string {
	rest := strings.TrimPrefix(path, "/api/forecasts/jobs/")
	rest = strings.TrimSuffix(rest, suffix)
	if rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}
