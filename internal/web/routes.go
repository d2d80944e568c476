package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/site-photos/internal/web/handlers"
	"github.com/kozaktomas/site-photos/internal/web/middleware"
)

// requestTimeout bounds ordinary API calls. Batches, uploads and the event
// stream are registered outside it.
const requestTimeout = time.Minute

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.config, s.sessionManager, s.logger.Named("auth"))
	photosHandler := handlers.NewPhotosHandler(s.config, s.logger.Named("photos"))
	uploadHandler := handlers.NewUploadHandler(s.config, s.spoolDir, s.logger.Named("upload"))
	referenceHandler := handlers.NewReferenceHandler(s.logger.Named("reference"))
	preferencesHandler := handlers.NewPreferencesHandler(s.pinnedSites, s.logger.Named("preferences"))

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.With(chiMiddleware.Timeout(requestTimeout)).Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.sessionManager))

			r.Get("/preferences/pinned-sites", preferencesHandler.GetPinnedSites)
			r.Put("/preferences/pinned-sites", preferencesHandler.PutPinnedSites)

			r.Group(func(r chi.Router) {
				r.Use(middleware.WithWorkspace(s.workspaces))

				// Long-running: event stream, batch mutations, staging and submit.
				r.Get("/events", handlers.Events)
				r.Post("/photos/move", photosHandler.Move)
				r.Post("/photos/delete", photosHandler.Delete)
				r.Post("/upload/open", uploadHandler.Open)
				r.Post("/upload/submit", uploadHandler.Submit)
				r.Post("/staging/{classification}", uploadHandler.Stage)

				r.Group(func(r chi.Router) {
					r.Use(chiMiddleware.Timeout(requestTimeout))

					r.Get("/workspace", photosHandler.Workspace)

					r.Get("/photos", photosHandler.List)
					r.Post("/photos/refresh", photosHandler.Refresh)

					r.Put("/filter", photosHandler.SetFilter)
					r.Patch("/filter", photosHandler.PatchFilter)
					r.Delete("/filter", photosHandler.ResetFilter)

					r.Post("/selection/toggle", photosHandler.Toggle)
					r.Post("/selection/all", photosHandler.SelectAll)
					r.Delete("/selection", photosHandler.ClearSelection)

					r.Post("/upload/cancel", uploadHandler.Cancel)
					r.Put("/upload/form", uploadHandler.SetForm)

					r.Get("/staging/previews/{id}", uploadHandler.Preview)
					r.Delete("/staging/{classification}/{index}", uploadHandler.Unstage)
					r.Post("/staging/{classification}/{index}/reorder", uploadHandler.Reorder)
					r.Delete("/staging", uploadHandler.ClearStaging)

					r.Get("/reports", referenceHandler.Reports)
					r.Get("/photo-sheets", referenceHandler.PhotoSheets)
					r.Post("/reference/refresh", referenceHandler.Refresh)
				})
			})
		})
	})
}
