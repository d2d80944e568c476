package handlers

import (
	"context"
	"net/http"

	"github.com/kozaktomas/site-photos/internal/web/middleware"
	"go.uber.org/zap"
)

// PinnedSiteStore persists each user's pinned sites.
type PinnedSiteStore interface {
	List(ctx context.Context, userID string) ([]string, error)
	Replace(ctx context.Context, userID string, siteIDs []string) error
}

// PreferencesHandler serves per-user UI preferences.
type PreferencesHandler struct {
	store  PinnedSiteStore
	logger *zap.Logger
}

// NewPreferencesHandler creates a preferences handler. A nil store makes
// the endpoints report that preferences are unavailable.
func NewPreferencesHandler(store PinnedSiteStore, logger *zap.Logger) *PreferencesHandler {
	return &PreferencesHandler{store: store, logger: logger}
}

type pinnedSitesBody struct {
	SiteIDs []string `json:"site_ids" validate:"max=50,dive,required,max=64"`
}

// userID returns the caller's user id, writing an error when preferences
// cannot be served.
func (h *PreferencesHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "preferences require a database")
		return "", false
	}
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	if session.UserID == "" {
		respondError(w, http.StatusBadRequest, "session has no user")
		return "", false
	}
	return session.UserID, true
}

// GetPinnedSites returns the caller's pinned sites in order.
func (h *PreferencesHandler) GetPinnedSites(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	sites, err := h.store.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("could not list pinned sites", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	respondJSON(w, http.StatusOK, pinnedSitesBody{SiteIDs: sites})
}

// PutPinnedSites replaces the caller's pinned sites.
func (h *PreferencesHandler) PutPinnedSites(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var body pinnedSitesBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Replace(r.Context(), userID, body.SiteIDs); err != nil {
		h.logger.Error("could not save pinned sites", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	sites, err := h.store.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("could not list pinned sites", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	respondJSON(w, http.StatusOK, pinnedSitesBody{SiteIDs: sites})
}
