package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gridcast/gridcast/internal/models"
	"github.com/shopspring/decimal"
	"log/slog"
)

// SiteStore is the persistence surface the site handlers need.
type SiteStore interface {
	CreateSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, id int64) (*models.Site, error)
	ListSites(ctx context.Context, siteType string) ([]models.Site, error)
	UpdateSite(ctx context.Context, site *models.Site) (bool, error)
	DeleteSite(ctx context.Context, id int64) (bool, error)
}

// SiteHandler handles site management requests
type SiteHandler struct {
	sites  SiteStore
	logger *slog.Logger
}

// NewSiteHandler creates a new site handler
func NewSiteHandler(sites SiteStore, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{sites: sites, logger: logger}
}

// SiteRequest is the request body for creating or updating a site.
type SiteRequest struct {
	Name       string   `json:"name"`
	SiteType   string   `json:"site_type"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	CapacityMW *float64 `json:"capacity_mw"`
}

func (req *SiteRequest) toSite() *models.Site {
	site := &models.Site{
		Name:      req.Name,
		SiteType:  strings.ToLower(req.SiteType),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	if req.CapacityMW != nil {
		capacity := decimal.NewFromFloat(*req.CapacityMW)
		site.CapacityMW = &capacity
	}
	return site
}

// HandleSites handles GET and POST /api/sites
func (h *SiteHandler) HandleSites(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listSites(w, r)
	case http.MethodPost:
		h.createSite(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSiteByID handles GET, PUT and DELETE /api/sites/:id
func (h *SiteHandler) HandleSiteByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r.URL.Path, "/api/sites/")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid site id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getSite(w, r, id)
	case http.MethodPut:
		h.updateSite(w, r, id)
	case http.MethodDelete:
		h.deleteSite(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SiteHandler) listSites(w http.ResponseWriter, r *http.Request) {
	siteType := strings.ToLower(r.URL.Query().Get("site_type"))
	if siteType != "" && !models.IsValidSiteType(siteType) {
		respondError(w, http.StatusBadRequest, "invalid site_type filter")
		return
	}

	sites, err := h.sites.ListSites(r.Context(), siteType)
	if err != nil {
		h.logger.Error("failed to list sites", "error", err)
		respondServiceError(w, err)
		return
	}
	if sites == nil {
		sites = []models.Site{}
	}
	respondJSON(w, http.StatusOK, sites)
}

func (h *SiteHandler) createSite(w http.ResponseWriter, r *http.Request) {
	var req SiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	site := req.toSite()
	if err := site.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.sites.CreateSite(r.Context(), site); err != nil {
		h.logger.Error("failed to create site", "error", err)
		respondServiceError(w, err)
		return
	}

	h.logger.Info("created site", "id", site.ID, "name", site.Name, "type", site.SiteType)
	respondJSON(w, http.StatusCreated, site)
}

func (h *SiteHandler) getSite(w http.ResponseWriter, r *http.Request, id int64) {
	site, err := h.sites.GetSite(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get site", "id", id, "error", err)
		respondServiceError(w, err)
		return
	}
	if site == nil {
		respondError(w, http.StatusNotFound, "site not found")
		return
	}
	respondJSON(w, http.StatusOK, site)
}

func (h *SiteHandler) updateSite(w http.ResponseWriter, r *http.Request, id int64) {
	var req SiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	site := req.toSite()
	site.ID = id
	if err := site.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	found, err := h.sites.UpdateSite(r.Context(), site)
	if err != nil {
		h.logger.Error("failed to update site", "id", id, "error", err)
		respondServiceError(w, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "site not found")
		return
	}
	respondJSON(w, http.StatusOK, site)
}

func (h *SiteHandler) deleteSite(w http.ResponseWriter, r *http.Request, id int64) {
	found, err := h.sites.DeleteSite(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete site", "id", id, "error", err)
		respondServiceError(w, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "site not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathID extracts the first numeric path segment after the prefix.
func pathID(path, prefix string) (int64, error) {
	rest := strings.TrimPrefix(path, prefix)
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}
	return strconv.ParseInt(rest, 10, 64)
}
