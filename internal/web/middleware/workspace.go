package middleware

import (
	"context"
	"net/http"

	"github.com/kozaktomas/site-photos/internal/web/workspace"
)

const workspaceContextKey contextKey = "workspace"

// WithWorkspace is middleware that resolves the photo workspace of the
// signed-in session and adds it to the context. Must run after RequireAuth.
func WithWorkspace(reg *workspace.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := GetSessionFromContext(r.Context())
			if session == nil || session.Token == "" {
				http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
				return
			}

			ws, err := reg.Get(r.Context(), workspace.Identity{
				SessionID: session.ID,
				Token:     session.Token,
				SiteID:    session.SiteID,
			})
			if err != nil {
				http.Error(w, `{"error": "failed to open photo workspace"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetWorkspaceInContext(r.Context(), ws)))
		})
	}
}

// GetWorkspaceFromContext retrieves the workspace from the request context.
// Returns nil if no workspace is available.
func GetWorkspaceFromContext(ctx context.Context) *workspace.Workspace {
	ws, ok := ctx.Value(workspaceContextKey).(*workspace.Workspace)
	if !ok {
		return nil
	}
	return ws
}

// SetWorkspaceInContext adds a workspace to the context.
func SetWorkspaceInContext(ctx context.Context, ws *workspace.Workspace) context.Context {
	return context.WithValue(ctx, workspaceContextKey, ws)
}

// MustGetWorkspace retrieves the workspace from context.
// If not available, writes an error response and returns nil.
// Handlers should return immediately after receiving nil.
func MustGetWorkspace(ctx context.Context, w http.ResponseWriter) *workspace.Workspace {
	ws := GetWorkspaceFromContext(ctx)
	if ws == nil {
		http.Error(w, `{"error": "photo workspace not available"}`, http.StatusInternalServerError)
		return nil
	}
	return ws
}
