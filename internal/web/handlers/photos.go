package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/kozaktomas/site-photos/internal/config"
	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/kozaktomas/site-photos/internal/siteapi"
	"github.com/kozaktomas/site-photos/internal/web/middleware"
	"github.com/kozaktomas/site-photos/internal/web/workspace"
	"go.uber.org/zap"
)

// PhotosHandler serves the collection, filter, selection and batch
// mutations of the caller's workspace.
type PhotosHandler struct {
	config *config.Config
	logger *zap.Logger
}

// NewPhotosHandler creates a new photos handler
func NewPhotosHandler(cfg *config.Config, logger *zap.Logger) *PhotosHandler {
	return &PhotosHandler{config: cfg, logger: logger}
}

// fetched responds with the workspace after a fetch. A superseded fetch is
// not an error: the newer one owns the state.
func fetched(w http.ResponseWriter, ws *workspace.Workspace, err error) {
	if err != nil && !errors.Is(err, photos.ErrStaleResponse) {
		respondWorkspaceError(w, ws, err)
		return
	}
	respondSnapshot(w, http.StatusOK, ws)
}

// Workspace returns the full workspace state.
func (h *PhotosHandler) Workspace(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	respondSnapshot(w, http.StatusOK, ws)
}

type pageQuery struct {
	Page int `form:"page" validate:"omitempty,min=1"`
}

// List fetches one page of the collection with the current filter.
func (h *PhotosHandler) List(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	var q pageQuery
	if err := decodeQuery(r, &q); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	fetched(w, ws, ws.Session.Fetch(r.Context(), q.Page))
}

// Refresh refetches the current page.
func (h *PhotosHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	fetched(w, ws, ws.Session.Refresh(r.Context()))
}

// SetFilter replaces the filter. The filter comes from the JSON body, or
// from the query string when there is no body.
func (h *PhotosHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}

	var f photos.Filter
	var err error
	if r.ContentLength > 0 {
		err = decodeJSON(r, &f)
	} else {
		err = decodeQuery(r, &f)
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	fetched(w, ws, ws.Session.SetFilter(r.Context(), f))
}

// PatchFilter changes only the filter fields present in the body.
func (h *PhotosHandler) PatchFilter(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	var p photos.FilterPatch
	if err := decodeJSON(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	fetched(w, ws, ws.Session.MergeFilter(r.Context(), p))
}

// ResetFilter restores the default filter.
func (h *PhotosHandler) ResetFilter(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	fetched(w, ws, ws.Session.ResetFilters(r.Context()))
}

type toggleRequest struct {
	ID string `json:"id" validate:"required"`
}

// Toggle flips the selection of one photo on the current page.
func (h *PhotosHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := ws.Session.Toggle(req.ID); err != nil {
		respondWorkspaceError(w, ws, err)
		return
	}
	respondSnapshot(w, http.StatusOK, ws)
}

type selectAllRequest struct {
	Classification string `json:"classification" validate:"required,oneof=before after"`
	Checked        bool   `json:"checked"`
}

// SelectAll selects or deselects every photo of one classification view.
func (h *PhotosHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	var req selectAllRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws.Session.SelectAll(siteapi.Classification(req.Classification), req.Checked)
	respondSnapshot(w, http.StatusOK, ws)
}

// ClearSelection empties the selection.
func (h *PhotosHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	ws.Session.ClearSelection()
	respondSnapshot(w, http.StatusOK, ws)
}

// BatchResponse reports a batch outcome with the refreshed workspace.
type BatchResponse struct {
	Succeeded []string        `json:"succeeded"`
	Failed    []string        `json:"failed"`
	Declined  bool            `json:"declined,omitempty"`
	Workspace photos.Snapshot `json:"workspace"`
}

func batchResponse(ws *workspace.Workspace, res *photos.BatchResult) BatchResponse {
	resp := BatchResponse{Succeeded: []string{}, Failed: []string{}}
	if res != nil {
		resp.Succeeded = append(resp.Succeeded, res.Succeeded...)
		resp.Failed = append(resp.Failed, res.FailedIDs()...)
	}
	resp.Workspace = ws.Session.Snapshot()
	return resp
}

type moveRequest struct {
	Target string   `json:"target" validate:"required,oneof=before after"`
	IDs    []string `json:"ids" validate:"omitempty,dive,required"`
}

// Move reclassifies the given photos, or the movable part of the selection
// when no ids are sent.
func (h *PhotosHandler) Move(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	target := siteapi.Classification(req.Target)
	// A batch keeps going when the client goes away.
	ctx := context.WithoutCancel(r.Context())
	var (
		res *photos.BatchResult
		err error
	)
	if len(req.IDs) > 0 {
		res, err = ws.Session.Move(ctx, req.IDs, target)
	} else {
		res, err = ws.Session.MoveSelected(ctx, target)
	}
	if err != nil {
		respondWorkspaceError(w, ws, err)
		return
	}
	h.logger.Info("moved photos",
		zap.String("site_id", ws.Session.SiteID()),
		zap.String("target", req.Target),
		zap.Int("succeeded", len(res.Succeeded)),
		zap.Int("failed", len(res.Failed)))
	respondJSON(w, http.StatusOK, batchResponse(ws, res))
}

type deleteRequest struct {
	Confirm bool     `json:"confirm"`
	IDs     []string `json:"ids" validate:"omitempty,dive,required"`
}

// Delete removes the given photos, or the selection when no ids are sent.
// The confirm flag is the user's answer to the confirmation prompt.
func (h *PhotosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.WithoutCancel(r.Context())
	confirm := photos.Answer(req.Confirm)
	var (
		res *photos.BatchResult
		err error
	)
	if len(req.IDs) > 0 {
		res, err = ws.Session.Delete(ctx, req.IDs, confirm)
	} else {
		res, err = ws.Session.DeleteSelected(ctx, confirm)
	}
	switch {
	case errors.Is(err, photos.ErrDeclined):
		resp := batchResponse(ws, nil)
		resp.Declined = true
		respondJSON(w, http.StatusOK, resp)
		return
	case err != nil:
		respondWorkspaceError(w, ws, err)
		return
	}
	h.logger.Info("deleted photos",
		zap.String("site_id", ws.Session.SiteID()),
		zap.Int("succeeded", len(res.Succeeded)),
		zap.Int("failed", len(res.Failed)))
	respondJSON(w, http.StatusOK, batchResponse(ws, res))
}
