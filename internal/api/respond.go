package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gridcast/gridcast/internal/database"
	"github.com/gridcast/gridcast/internal/forecast"
)

// ValidationError represents a request validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps forecast service errors onto HTTP statuses. Not
// found sentinels become 404, caller mistakes become 400, a processing
// failure surfaces as 500 carrying its job ID.
func respondServiceError(w http.ResponseWriter, err error) {
	var procErr *forecast.ProcessingError
	switch {
	case errors.Is(err, forecast.ErrPortfolioNotFound),
		errors.Is(err, forecast.ErrSiteNotFound),
		errors.Is(err, forecast.ErrJobNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, forecast.ErrEmptyPortfolio),
		errors.Is(err, forecast.ErrInvalidInput),
		errors.Is(err, database.ErrDuplicate):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &procErr):
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  procErr.Err.Error(),
			"job_id": procErr.JobID,
		})
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
