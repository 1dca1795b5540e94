package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gridcast/gridcast/internal/auth"
	"github.com/gridcast/gridcast/internal/config"
	"log/slog"
)

// SetupRoutes configures all API routes. Read endpoints are public; site,
// portfolio and job mutations require a valid admin token.
func SetupRoutes(mux *http.ServeMux, sites SiteStore, portfolios PortfolioStore, service ForecastService, authConfig config.AuthConfig, defaultRetention time.Duration, logger *slog.Logger) {
	siteHandler := NewSiteHandler(sites, logger)
	portfolioHandler := NewPortfolioHandler(portfolios, logger)
	forecastHandler := NewForecastHandler(service, defaultRetention, logger)
	authHandler := NewAuthHandler(authConfig, logger)

	authMiddleware := auth.Middleware(authConfig)
	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	// Authentication routes
	mux.HandleFunc("/api/auth/login", withCORS(authHandler.Login))
	mux.HandleFunc("/api/auth/validate", withCORS(func(w http.ResponseWriter, r *http.Request) {
		protected(authHandler.ValidateToken).ServeHTTP(w, r)
	}))

	// Site routes
	mux.HandleFunc("/api/sites", withCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			protected(siteHandler.HandleSites).ServeHTTP(w, r)
			return
		}
		siteHandler.HandleSites(w, r)
	}))
	mux.HandleFunc("/api/sites/", withCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut || r.Method == http.MethodDelete {
			protected(siteHandler.HandleSiteByID).ServeHTTP(w, r)
			return
		}
		siteHandler.HandleSiteByID(w, r)
	}))

	// Portfolio routes, including site membership subroutes
	mux.HandleFunc("/api/portfolios", withCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			protected(portfolioHandler.HandlePortfolios).ServeHTTP(w, r)
			return
		}
		portfolioHandler.HandlePortfolios(w, r)
	}))
	mux.HandleFunc("/api/portfolios/", withCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			protected(portfolioHandler.HandlePortfolioByID).ServeHTTP(w, r)
			return
		}
		portfolioHandler.HandlePortfolioByID(w, r)
	}))

	// Forecast routes: trigger requires auth, results are public
	mux.HandleFunc("/api/forecasts/portfolio/", withCORS(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/trigger"):
			protected(forecastHandler.TriggerForecast).ServeHTTP(w, r)
		case strings.HasSuffix(r.URL.Path, "/results"):
			forecastHandler.PortfolioResults(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	mux.HandleFunc("/api/forecasts/site/", withCORS(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/results") {
			forecastHandler.SiteResults(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	mux.HandleFunc("/api/forecasts/jobs/", withCORS(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/status"):
			forecastHandler.JobStatus(w, r)
		case strings.HasSuffix(r.URL.Path, "/cancel"):
			protected(forecastHandler.CancelJob).ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	mux.HandleFunc("/api/forecasts/cleanup", withCORS(func(w http.ResponseWriter, r *http.Request) {
		protected(forecastHandler.Cleanup).ServeHTTP(w, r)
	}))

	// CORS preflight fallback
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			setCORSHeaders(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}
