package handlers

import (
	"net/http"

	"github.com/kozaktomas/site-photos/internal/siteapi"
	"github.com/kozaktomas/site-photos/internal/web/middleware"
	"go.uber.org/zap"
)

// ReferenceHandler serves the report and photo-sheet lists.
type ReferenceHandler struct {
	logger *zap.Logger
}

func NewReferenceHandler(logger *zap.Logger) *ReferenceHandler {
	return &ReferenceHandler{logger: logger}
}

// ReferenceResponse is one reference list with its loading flag.
type ReferenceResponse[T any] struct {
	Items   []T  `json:"items"`
	Loading bool `json:"loading"`
}

// Reports returns the reports photos can be attached to. A failed load
// yields an empty list.
func (h *ReferenceHandler) Reports(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	snap := ws.Session.Snapshot()
	respondJSON(w, http.StatusOK, ReferenceResponse[siteapi.Report]{
		Items:   nonNil(snap.Reports),
		Loading: snap.ReportsLoading,
	})
}

// PhotoSheets returns the generated photo sheets of the site.
func (h *ReferenceHandler) PhotoSheets(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	snap := ws.Session.Snapshot()
	respondJSON(w, http.StatusOK, ReferenceResponse[siteapi.PhotoSheet]{
		Items:   nonNil(snap.PhotoSheets),
		Loading: snap.PhotoSheetsLoading,
	})
}

// Refresh drops the cached lists of the site and reloads both.
func (h *ReferenceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	if err := ws.Reference.Invalidate(r.Context(), ws.Session.SiteID()); err != nil {
		h.logger.Warn("could not invalidate reference cache",
			zap.String("site_id", ws.Session.SiteID()), zap.Error(err))
	}
	ws.Session.RefreshReference(r.Context())
	respondSnapshot(w, http.StatusOK, ws)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
