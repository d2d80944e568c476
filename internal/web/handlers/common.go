package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/kozaktomas/site-photos/internal/siteapi"
	"github.com/kozaktomas/site-photos/internal/web/workspace"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

var (
	validate     = validator.New(validator.WithRequiredStructEnabled())
	queryDecoder = form.NewDecoder()
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes the request body into v and validates it.
// An empty body leaves v at its zero value.
func decodeJSON(r *http.Request, v any) error {
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(v); err != nil {
			return errors.New(errInvalidRequestBody)
		}
	}
	return validateRequest(v)
}

// decodeQuery decodes the URL query into v and validates it.
func decodeQuery(r *http.Request, v any) error {
	if err := queryDecoder.Decode(v, r.URL.Query()); err != nil {
		return errors.New("invalid query parameters")
	}
	return validateRequest(v)
}

func validateRequest(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %s", strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// statusForError maps workspace errors to HTTP status codes.
func statusForError(err error) int {
	var apiErr *siteapi.APIError
	switch {
	case errors.Is(err, photos.ErrInvalidFilter),
		errors.Is(err, photos.ErrNoReport),
		errors.Is(err, photos.ErrNoFiles),
		errors.Is(err, photos.ErrUnsupportedFile),
		errors.Is(err, photos.ErrNothingToMove),
		errors.Is(err, photos.ErrNoSelection):
		return http.StatusUnprocessableEntity
	case errors.Is(err, photos.ErrNotInCollection):
		return http.StatusNotFound
	case errors.Is(err, photos.ErrSubmitting), errors.Is(err, photos.ErrStaleResponse):
		return http.StatusConflict
	case errors.Is(err, photos.ErrClosed):
		return http.StatusGone
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// workspaceError is the body of a failed workspace operation. The current
// state is included so clients can re-render without another request.
type workspaceError struct {
	Error     string          `json:"error"`
	Workspace photos.Snapshot `json:"workspace"`
}

// respondSnapshot sends the workspace state.
func respondSnapshot(w http.ResponseWriter, status int, ws *workspace.Workspace) {
	respondJSON(w, status, ws.Session.Snapshot())
}

// respondWorkspaceError sends err together with the workspace state.
func respondWorkspaceError(w http.ResponseWriter, ws *workspace.Workspace, err error) {
	respondJSON(w, statusForError(err), workspaceError{
		Error:     err.Error(),
		Workspace: ws.Session.Snapshot(),
	})
}

// parseClassificationParam reads a before/after URL parameter.
func parseClassificationParam(w http.ResponseWriter, value string) (siteapi.Classification, bool) {
	c, err := siteapi.ParseClassification(value)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return c, true
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
