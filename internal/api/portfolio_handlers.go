package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gridcast/gridcast/internal/models"
	"log/slog"
)

// PortfolioStore is the persistence surface the portfolio handlers need.
type PortfolioStore interface {
	CreatePortfolio(ctx context.Context, portfolio *models.Portfolio) error
	GetPortfolio(ctx context.Context, id int64) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]models.Portfolio, error)
	UpdatePortfolio(ctx context.Context, portfolio *models.Portfolio) (bool, error)
	DeletePortfolio(ctx context.Context, id int64) (bool, error)
	AddSite(ctx context.Context, portfolioID, siteID int64) error
	RemoveSite(ctx context.Context, portfolioID, siteID int64) (bool, error)
}

// PortfolioHandler handles portfolio management requests
type PortfolioHandler struct {
	portfolios PortfolioStore
	logger     *slog.Logger
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(portfolios PortfolioStore, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolios: portfolios, logger: logger}
}

// PortfolioRequest is the request body for creating or updating a portfolio.
type PortfolioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// portfolioResponse augments a portfolio with derived fields.
type portfolioResponse struct {
	*models.Portfolio
	SiteCount       int     `json:"site_count"`
	TotalCapacityMW float64 `json:"total_capacity_mw"`
}

func toPortfolioResponse(p *models.Portfolio) portfolioResponse {
	capacity, _ := p.TotalCapacity().Float64()
	return portfolioResponse{
		Portfolio:       p,
		SiteCount:       p.SiteCount(),
		TotalCapacityMW: capacity,
	}
}

// HandlePortfolios handles GET and POST /api/portfolios
func (h *PortfolioHandler) HandlePortfolios(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listPortfolios(w, r)
	case http.MethodPost:
		h.createPortfolio(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandlePortfolioByID handles /api/portfolios/:id and its site membership
// subroutes /api/portfolios/:id/sites/:siteId.
func (h *PortfolioHandler) HandlePortfolioByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r.URL.Path, "/api/portfolios/")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid portfolio id")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/portfolios/")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		sub := rest[idx:]
		if strings.HasPrefix(sub, "/sites/") {
			siteID, err := strconv.ParseInt(strings.TrimPrefix(sub, "/sites/"), 10, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid site id")
				return
			}
			h.handleMembership(w, r, id, siteID)
			return
		}
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getPortfolio(w, r, id)
	case http.MethodPut:
		h.updatePortfolio(w, r, id)
	case http.MethodDelete:
		h.deletePortfolio(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PortfolioHandler) handleMembership(w http.ResponseWriter, r *http.Request, portfolioID, siteID int64) {
	switch r.Method {
	case http.MethodPost:
		if err := h.portfolios.AddSite(r.Context(), portfolioID, siteID); err != nil {
			h.logger.Error("failed to add site to portfolio",
				"portfolio_id", portfolioID, "site_id", siteID, "error", err)
			respondServiceError(w, err)
			return
		}
		h.logger.Info("added site to portfolio", "portfolio_id", portfolioID, "site_id", siteID)
		respondJSON(w, http.StatusCreated, map[string]int64{
			"portfolio_id": portfolioID,
			"site_id":      siteID,
		})
	case http.MethodDelete:
		found, err := h.portfolios.RemoveSite(r.Context(), portfolioID, siteID)
		if err != nil {
			h.logger.Error("failed to remove site from portfolio",
				"portfolio_id", portfolioID, "site_id", siteID, "error", err)
			respondServiceError(w, err)
			return
		}
		if !found {
			respondError(w, http.StatusNotFound, "site is not in portfolio")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PortfolioHandler) listPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.portfolios.ListPortfolios(r.Context())
	if err != nil {
		h.logger.Error("failed to list portfolios", "error", err)
		respondServiceError(w, err)
		return
	}

	responses := make([]portfolioResponse, 0, len(portfolios))
	for i := range portfolios {
		responses = append(responses, toPortfolioResponse(&portfolios[i]))
	}
	respondJSON(w, http.StatusOK, responses)
}

func (h *PortfolioHandler) createPortfolio(w http.ResponseWriter, r *http.Request) {
	var req PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "portfolio name is required")
		return
	}

	portfolio := &models.Portfolio{Name: req.Name, Description: req.Description}
	if err := h.portfolios.CreatePortfolio(r.Context(), portfolio); err != nil {
		h.logger.Error("failed to create portfolio", "error", err)
		respondServiceError(w, err)
		return
	}

	h.logger.Info("created portfolio", "id", portfolio.ID, "name", portfolio.Name)
	respondJSON(w, http.StatusCreated, toPortfolioResponse(portfolio))
}

func (h *PortfolioHandler) getPortfolio(w http.ResponseWriter, r *http.Request, id int64) {
	portfolio, err := h.portfolios.GetPortfolio(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get portfolio", "id", id, "error", err)
		respondServiceError(w, err)
		return
	}
	if portfolio == nil {
		respondError(w, http.StatusNotFound, "portfolio not found")
		return
	}
	respondJSON(w, http.StatusOK, toPortfolioResponse(portfolio))
}

func (h *PortfolioHandler) updatePortfolio(w http.ResponseWriter, r *http.Request, id int64) {
	var req PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "portfolio name is required")
		return
	}

	portfolio := &models.Portfolio{ID: id, Name: req.Name, Description: req.Description}
	found, err := h.portfolios.UpdatePortfolio(r.Context(), portfolio)
	if err != nil {
		h.logger.Error("failed to update portfolio", "id", id, "error", err)
		respondServiceError(w, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "portfolio not found")
		return
	}
	respondJSON(w, http.StatusOK, portfolio)
}

func (h *PortfolioHandler) deletePortfolio(w http.ResponseWriter, r *http.Request, id int64) {
	found, err := h.portfolios.DeletePortfolio(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete portfolio", "id", id, "error", err)
		respondServiceError(w, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "portfolio not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
