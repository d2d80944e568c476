package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/site-photos/internal/config"
	"github.com/kozaktomas/site-photos/internal/siteapi"
	"github.com/kozaktomas/site-photos/internal/web/middleware"
	"go.uber.org/zap"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	config         *config.Config
	sessionManager *middleware.SessionManager
	logger         *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config, sm *middleware.SessionManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		config:         cfg,
		sessionManager: sm,
		logger:         logger,
	}
}

type loginRequest struct {
	Token  string `json:"token" validate:"required"`
	SiteID string `json:"site_id" validate:"required,max=64"`
	UserID string `json:"user_id" validate:"max=64"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	SiteID    string `json:"site_id,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Login opens a session for a backend token and site. The token is checked
// against the backend before the session is created.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := siteapi.NewClient(h.config.Backend.URL, req.Token)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create site API client")
		return
	}
	if _, err := client.ListReports(r.Context(), req.SiteID); err != nil {
		var apiErr *siteapi.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			respondJSON(w, http.StatusUnauthorized, LoginResponse{
				Success: false,
				Error:   "invalid credentials",
			})
			return
		}
		h.logger.Warn("login check failed",
			zap.String("site_id", sanitizeForLog(req.SiteID)), zap.Error(err))
		respondError(w, http.StatusBadGateway, "site backend is not reachable")
		return
	}

	session, err := h.sessionManager.CreateSession(r.Context(), req.Token, req.SiteID, req.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.sessionManager.SetSessionCookie(w, r, session)

	respondJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		SessionID: session.ID,
		SiteID:    session.SiteID,
		ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z"),
	})
}

// Logout ends the session. Its workspace is closed through the session
// manager's delete hook, which releases staged previews.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessionManager.GetSessionFromRequest(r); session != nil {
		h.sessionManager.DeleteSession(r.Context(), session.ID)
	}

	h.sessionManager.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StatusResponse represents the auth status response
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	SiteID        string `json:"site_id,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// Status checks if the user is authenticated by validating the session.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.sessionManager.GetSessionFromRequest(r)
	if session == nil {
		respondJSON(w, http.StatusOK, StatusResponse{Authenticated: false})
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{
		Authenticated: true,
		SiteID:        session.SiteID,
		ExpiresAt:     session.ExpiresAt.Format("2006-01-02T15:04:05Z"),
	})
}
