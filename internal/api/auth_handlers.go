package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gridcast/gridcast/internal/auth"
	"github.com/gridcast/gridcast/internal/config"
	"log/slog"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	config config.AuthConfig
	logger *slog.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(cfg config.AuthConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		logger: logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username != h.config.AdminUsername || !h.passwordMatches(req.Password) {
		h.logger.Warn("failed login attempt", "ip", r.RemoteAddr)
		// Generic error message to prevent credential enumeration
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(req.Username, h.config.JWTSecret, h.config.TokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("successful login", "ip", r.RemoteAddr)

	respondJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.config.TokenTTL),
	})
}

// passwordMatches compares the submitted password against the configured
// admin password, which may be stored as a bcrypt hash.
func (h *AuthHandler) passwordMatches(password string) bool {
	if h.config.AdminPassword == "" {
		return false
	}
	if strings.HasPrefix(h.config.AdminPassword, "$2") {
		return auth.CheckPassword(password, h.config.AdminPassword)
	}
	return password == h.config.AdminPassword
}

// ValidateToken handles GET /api/auth/validate
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	username, _ := auth.UserFromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":    true,
		"username": username,
	})
}
