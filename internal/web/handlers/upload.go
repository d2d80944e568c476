package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/site-photos/internal/config"
	"github.com/kozaktomas/site-photos/internal/constants"
	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/kozaktomas/site-photos/internal/preview"
	"github.com/kozaktomas/site-photos/internal/siteapi"
	"github.com/kozaktomas/site-photos/internal/web/middleware"
	"go.uber.org/zap"
)

// UploadHandler handles the upload panel, staging and submission.
type UploadHandler struct {
	config   *config.Config
	spoolDir string
	logger   *zap.Logger
}

// NewUploadHandler creates a new upload handler. Received files are
// spooled below spoolDir until their previews are released.
func NewUploadHandler(cfg *config.Config, spoolDir string, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		config:   cfg,
		spoolDir: spoolDir,
		logger:   logger,
	}
}

// spoolFiles copies multipart files to the spool directory. On failure the
// files spooled so far are removed.
func (h *UploadHandler) spoolFiles(headers []*multipart.FileHeader) ([]*preview.SpoolFile, error) {
	spooled := make([]*preview.SpoolFile, 0, len(headers))
	for _, fh := range headers {
		sf, err := func() (*preview.SpoolFile, error) {
			file, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open file: %s", fh.Filename)
			}
			defer file.Close()
			return preview.Spool(h.spoolDir, fh.Filename, fh.Header.Get("Content-Type"), file)
		}()
		if err != nil {
			removeSpooled(spooled)
			return nil, err
		}
		spooled = append(spooled, sf)
	}
	return spooled, nil
}

func removeSpooled(files []*preview.SpoolFile) {
	for _, f := range files {
		f.Remove()
	}
}

func asFiles(spooled []*preview.SpoolFile) []photos.File {
	files := make([]photos.File, len(spooled))
	for i, f := range spooled {
		files[i] = f
	}
	return files
}

type openRequest struct {
	Classification string `json:"classification" validate:"omitempty,oneof=before after"`
}

// Open opens the upload panel. Files sent as multipart "files" together
// with a classification are staged into that list.
func (h *UploadHandler) Open(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}

	var (
		seed  *siteapi.Classification
		files []photos.File
	)
	if isMultipart(r) {
		if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
			respondError(w, http.StatusBadRequest, "failed to parse multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()

		if v := r.FormValue("classification"); v != "" {
			c, ok := parseClassificationParam(w, v)
			if !ok {
				return
			}
			seed = &c
		}
		spooled, err := h.spoolFiles(r.MultipartForm.File["files"])
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		files = asFiles(spooled)
		if err := ws.Session.OpenUploader(r.Context(), seed, files); err != nil {
			removeSpooled(spooled)
			respondWorkspaceError(w, ws, err)
			return
		}
		if seed == nil {
			// Nothing takes ownership of files dropped without a zone.
			removeSpooled(spooled)
		}
		respondSnapshot(w, http.StatusOK, ws)
		return
	}

	var req openRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Classification != "" {
		c := siteapi.Classification(req.Classification)
		seed = &c
	}
	if err := ws.Session.OpenUploader(r.Context(), seed, nil); err != nil {
		respondWorkspaceError(w, ws, err)
		return
	}
	respondSnapshot(w, http.StatusOK, ws)
}

// Cancel clears the form and staging and closes the panel.
func (h *UploadHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	if err := ws.Session.CancelUpload(); err != nil {
		respondWorkspaceError(w, ws, err)
		return
	}
	respondSnapshot(w, http.StatusOK, ws)
}

// SetForm replaces the report and description of the next submission.
func (h *UploadHandler) SetForm(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	var form photos.UploadForm
	if err := decodeJSON(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ws.Session.SetUploadForm(form); err != nil {
		respondWorkspaceError(w, ws, err)
		return
	}
	respondSnapshot(w, http.StatusOK, ws)
}

// Stage adds the multipart "files" to the classification in the URL.
func (h *UploadHandler) Stage(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	c, ok := parseClassificationParam(w, chi.URLParam(r, "classification"))
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	spooled, err := h.spoolFiles(headers)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := ws.Session.Stage(r.Context(), c, asFiles(spooled)); err != nil {
		removeSpooled(spooled)
		respondWorkspaceError(w, ws, err)
		return
	}
	respondSnapshot(w, http.StatusOK, ws)
}

// stagedIndex reads the classification and index URL parameters.
func stagedIndex(w http.ResponseWriter, r *http.Request) (siteapi.Classification, int, bool) {
	c, ok := parseClassificationParam(w, chi.URLParam(r, "classification"))
	if !ok {
		return "", 0, false
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid index")
		return "", 0, false
	}
	return c, index, true
}

// Unstage removes one staged file.
func (h *UploadHandler) Unstage(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	c, index, ok := stagedIndex(w, r)
	if !ok {
		return
	}
	if err := ws.Session.Unstage(c, index); err != nil {
		respondWorkspaceError(w, ws, err)
		return
	}
	respondSnapshot(w, http.StatusOK, ws)
}

type reorderRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// Reorder moves one staged file up or down within its list.
func (h *UploadHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	c, index, ok := stagedIndex(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	direction := 1
	if req.Direction == "up" {
		direction = -1
	}
	if err := ws.Session.Reorder(c, index, direction); err != nil {
		respondWorkspaceError(w, ws, err)
		return
	}
	respondSnapshot(w, http.StatusOK, ws)
}

// ClearStaging removes every staged file.
func (h *UploadHandler) ClearStaging(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	if err := ws.Session.ClearStaging(); err != nil {
		respondWorkspaceError(w, ws, err)
		return
	}
	respondSnapshot(w, http.StatusOK, ws)
}

// Preview serves the thumbnail of a staged file.
func (h *UploadHandler) Preview(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}
	entry, ok := ws.Session.StagedPreview(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "preview not found")
		return
	}
	p, ok := entry.Preview.(*preview.Preview)
	if !ok {
		respondError(w, http.StatusNotFound, "preview not available")
		return
	}
	path, ok := p.ThumbnailPath()
	if !ok {
		respondError(w, http.StatusNotFound, "preview not available")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFile(w, r, path)
}

// SubmitResponse reports a submission with the resulting workspace.
type SubmitResponse struct {
	Uploaded  int             `json:"uploaded"`
	Error     string          `json:"error,omitempty"`
	Workspace photos.Snapshot `json:"workspace"`
}

// Submit uploads every staged file in order. Progress is streamed on the
// event stream; the upload continues if the client disconnects.
func (h *UploadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ws := middleware.MustGetWorkspace(r.Context(), w)
	if ws == nil {
		return
	}

	n, err := ws.Session.Submit(context.WithoutCancel(r.Context()))
	if err != nil {
		if !errors.Is(err, photos.ErrNoReport) && !errors.Is(err, photos.ErrNoFiles) {
			h.logger.Warn("upload submission failed",
				zap.String("site_id", ws.Session.SiteID()),
				zap.Int("uploaded", n),
				zap.Error(err))
		}
		respondJSON(w, statusForError(err), SubmitResponse{
			Uploaded:  n,
			Error:     err.Error(),
			Workspace: ws.Session.Snapshot(),
		})
		return
	}
	respondJSON(w, http.StatusOK, SubmitResponse{Uploaded: n, Workspace: ws.Session.Snapshot()})
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/")
}
